package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalsanie/shamash-sub001/internal/extractor"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
)

// A malformed class file never aborts the scan: it becomes a FactsError
// entry, and ExtractUnit still returns a usable (empty) index.
func TestExtractUnit_BadMagicFailsOpen(t *testing.T) {
	unit := factmodel.BytecodeUnit{
		OriginID: "bad.class",
		Bytes:    []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x34},
	}
	idx := extractor.ExtractUnit(unit)
	require.NotNil(t, idx)
	require.Len(t, idx.Errors, 1)
	assert.Equal(t, "parse", idx.Errors[0].Phase)
	assert.Equal(t, "bad.class", idx.Errors[0].OriginID)
	assert.Empty(t, idx.Classes)
}

func TestExtractUnit_TruncatedInputFailsOpen(t *testing.T) {
	unit := factmodel.BytecodeUnit{
		OriginID: "truncated.class",
		Bytes:    []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00},
	}
	idx := extractor.ExtractUnit(unit)
	require.NotNil(t, idx)
	require.NotEmpty(t, idx.Errors)
	assert.Empty(t, idx.Classes)
}

func TestExtractUnit_EmptyInputFailsOpen(t *testing.T) {
	idx := extractor.ExtractUnit(factmodel.BytecodeUnit{OriginID: "empty.class"})
	require.NotNil(t, idx)
	require.NotEmpty(t, idx.Errors)
}
