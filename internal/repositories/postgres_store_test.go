package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"pos-backend/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"serialization failure", fmt.Errorf("failed to commit transaction: %w", &pgconn.PgError{Code: "40001"}), apperr.KindSequenceContention},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, apperr.KindSequenceContention},
		{"check violation", &pgconn.PgError{Code: "23514"}, apperr.KindStorage},
		{"plain error", errors.New("connection reset"), apperr.KindStorage},
		{"already typed", apperr.InsufficientStock("p1"), apperr.KindInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(classify(tt.err)))
		})
	}

	assert.Nil(t, classify(nil))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(errors.New("x")))
}
