package dataset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-synth/internal/domain"
)

func TestRow_RequireNonBlank(t *testing.T) {
	row := Row{"subject": "Invoices", "description": "  ", "count": 3.0}

	vals, reason := row.RequireNonBlank("subject")
	assert.Empty(t, reason)
	assert.Equal(t, map[string]string{"subject": "Invoices"}, vals)

	_, reason = row.RequireNonBlank("subject", "description")
	assert.Equal(t, domain.SkipBlankField, reason)

	_, reason = row.RequireNonBlank("subject", "context")
	assert.Equal(t, domain.SkipMissingField, reason)

	vals, reason = row.RequireNonBlank("count")
	assert.Empty(t, reason)
	assert.Equal(t, "3", vals["count"])
}

func TestRow_RequirePresent(t *testing.T) {
	row := Row{"subject": "", "context": "c", "extracted_info": map[string]any{"total": 40.0}}

	vals, reason := row.RequirePresent("subject", "context", "extracted_info")
	assert.Empty(t, reason)
	assert.Equal(t, "", vals["subject"])
	assert.Equal(t, `{"total":40}`, vals["extracted_info"])

	_, reason = row.RequirePresent("subject", "description")
	assert.Equal(t, domain.SkipMissingField, reason)
}

func TestRow_Truthy(t *testing.T) {
	row := Row{
		"s": "x", "empty": "", "t": true, "f": false, "zero": 0.0, "n": 2.0,
		"list": []any{1.0}, "nolist": []any{}, "null": nil,
	}
	for key, want := range map[string]bool{
		"s": true, "empty": false, "t": true, "f": false, "zero": false, "n": true,
		"list": true, "nolist": false, "null": false, "absent": false,
	} {
		assert.Equal(t, want, row.Truthy(key), key)
	}
}

func TestDecode(t *testing.T) {
	row := Row{"subject": "s", "description": "d", "context": "c", "ignored": 1.0}
	ctx, err := Decode[domain.Context](row)
	require.NoError(t, err)
	assert.Equal(t, domain.Context{Subject: "s", Description: "d", Context: "c"}, ctx)

	_, err = Decode[domain.Context](Row{"subject": 12.0})
	assert.Error(t, err)
}

func TestDataset(t *testing.T) {
	ds := New[domain.Subject]("subjects", "A dataset of subjects")
	assert.Equal(t, "subjects", ds.Name())
	assert.Equal(t, "A dataset of subjects", ds.Description())

	ds.Append(domain.Subject{Subject: "a"}, domain.Subject{Subject: "b"})
	assert.Equal(t, 2, ds.Len())

	recs := ds.Records()
	recs[0].Subject = "mutated"
	assert.Equal(t, "a", ds.Records()[0].Subject)

	assert.Equal(t, 0, ds.Reset().Len())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds.Append(domain.Subject{Subject: "x"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, ds.Len())
}
