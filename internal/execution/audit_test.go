package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_AppendAndRecords(t *testing.T) {
	log := NewAuditLog(0)
	for _, id := range []string{"a", "b", "c"} {
		log.Append(AuditRecord{TaskID: id})
	}

	all := log.Records(0)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].TaskID)
	assert.NotEmpty(t, all[0].ID)
	assert.NotEqual(t, all[0].ID, all[1].ID)

	last := log.Records(2)
	require.Len(t, last, 2)
	assert.Equal(t, []string{"b", "c"}, []string{last[0].TaskID, last[1].TaskID})

	assert.Len(t, log.Records(10), 3)
}

func TestAuditLog_RecordsAreCopies(t *testing.T) {
	log := NewAuditLog(0)
	log.Append(AuditRecord{TaskID: "a"})

	got := log.Records(0)
	got[0].TaskID = "mutated"
	assert.Equal(t, "a", log.Records(0)[0].TaskID)
}

func TestAuditLog_Bounded(t *testing.T) {
	log := NewAuditLog(2)
	for _, id := range []string{"a", "b", "c"} {
		log.Append(AuditRecord{TaskID: id})
	}
	got := log.Records(0)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].TaskID)
	assert.Equal(t, "c", got[1].TaskID)
}

func TestAuditLog_Reset(t *testing.T) {
	log := NewAuditLog(-1)
	log.Append(AuditRecord{TaskID: "a"})
	log.Reset()
	assert.Zero(t, log.Len())
	assert.Empty(t, log.Records(0))
}
