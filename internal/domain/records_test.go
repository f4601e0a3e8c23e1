package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidation(t *testing.T) {
	t.Run("sub-category requires every slot", func(t *testing.T) {
		sc := SubCategory{
			MainCategory: "Finance",
			SubCategory1: "Invoices", Description1: "Billing documents",
			SubCategory2: "Payroll", Description2: "Salary records",
			SubCategory3: "Tax", Description3: "Tax filings",
		}
		require.NoError(t, sc.Validate())

		sc.Description2 = "   "
		err := sc.Validate()
		require.ErrorIs(t, err, ErrInvalidRecord)
		assert.Contains(t, err.Error(), "Description2")
	})

	t.Run("blank strings rejected", func(t *testing.T) {
		s := Subject{Subject: "\t", Description: "d"}
		require.ErrorIs(t, s.Validate(), ErrInvalidRecord)

		c := Context{Subject: "s", Description: "d", Context: ""}
		require.ErrorIs(t, c.Validate(), ErrInvalidRecord)

		e := Extraction{Subject: "s", Description: "d", Context: "c", ExtractedInfo: "x"}
		require.NoError(t, e.Validate())
	})

	t.Run("validation only needs a verdict", func(t *testing.T) {
		v := Validation{ValidationResult: `{"is_accurate": true}`}
		require.NoError(t, v.Validate())

		v.ValidationResult = ""
		require.ErrorIs(t, v.Validate(), ErrInvalidRecord)
	})

	t.Run("quality score range", func(t *testing.T) {
		q := QualityScore{Subject: "s", Context: "c", QualityScore: 0}
		require.NoError(t, q.Validate())

		q.QualityScore = 1
		require.NoError(t, q.Validate())

		q.QualityScore = 1.2
		require.ErrorIs(t, q.Validate(), ErrInvalidRecord)

		q.QualityScore = -0.1
		require.ErrorIs(t, q.Validate(), ErrInvalidRecord)
	})

	t.Run("rag inputs", func(t *testing.T) {
		q := QuestionInput{PersonaBio: "A retired nurse", Context: "Ward notes"}
		require.NoError(t, q.Validate())

		a := AnswerInput{Question: "What happened?", Context: ""}
		require.ErrorIs(t, a.Validate(), ErrInvalidRecord)
	})
}
