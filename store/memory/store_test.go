package memory_test

import (
	"testing"

	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/store/memory"
	"github.com/zkrune/tokenledger/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
