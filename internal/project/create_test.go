package project

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressRecord struct {
	failed  bool
	total   int
	current int
	message string
}

func collectProgress(records *[]progressRecord) CreateProgress {
	return func(_ *Project, failed bool, total, current int, message string) {
		*records = append(*records, progressRecord{failed, total, current, message})
	}
}

func TestCreateEmitsOneStepPerBank(t *testing.T) {
	var records []progressRecord
	p, err := Create(bytes.NewReader(buildINES(2, 1)), 7, "NEW", collectProgress(&records))
	require.NoError(t, err)

	require.NotNil(t, p.System)
	assert.Equal(t, uint64(7), p.ID)
	assert.Equal(t, 6, p.System.NumMemoryRegions())

	// "Loading file...", one step per PRG bank, one per CHR bank, "Done".
	require.Len(t, records, 5)
	assert.Equal(t, "Loading file...", records[0].message)
	assert.Equal(t, "Loading PRG ROM bank 0", records[1].message)
	assert.Equal(t, "Loading PRG ROM bank 1", records[2].message)
	assert.Equal(t, "Loading CHR ROM bank 0", records[3].message)
	assert.Equal(t, "Done", records[4].message)
	last := records[len(records)-1]
	assert.False(t, last.failed)
	assert.Equal(t, last.total, last.current)
}

func TestCreateRejectsNonROMInput(t *testing.T) {
	var records []progressRecord
	_, err := Create(bytes.NewReader([]byte("definitely not a ROM file at all")), 1, "X", collectProgress(&records))
	require.Error(t, err)
	last := records[len(records)-1]
	assert.True(t, last.failed)
	assert.Equal(t, "Error: Not an NES ROM file", last.message)
}

func TestCreateReportsTruncatedPRG(t *testing.T) {
	data := buildINES(2, 1)[:16+100] // header promises two banks, file holds a fragment
	var records []progressRecord
	_, err := Create(bytes.NewReader(data), 1, "X", collectProgress(&records))
	require.Error(t, err)
	last := records[len(records)-1]
	assert.True(t, last.failed)
	assert.Equal(t, "Error: file too short when reading PRG-ROM", last.message)
}
