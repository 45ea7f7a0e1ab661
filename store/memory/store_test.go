package memory_test

import (
	"testing"

	"github.com/xraph/spool/store"
	"github.com/xraph/spool/store/memory"
	"github.com/xraph/spool/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
