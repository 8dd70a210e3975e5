package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	minioErr "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/ebogdum/mediasource/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"no such key", minioErr.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.KindNotFound},
		{"404 without code", minioErr.ErrorResponse{StatusCode: http.StatusNotFound}, errs.KindNotFound},
		{"wrapped no such bucket", fmt.Errorf("outer: %w", minioErr.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}), errs.KindBackendFailure},
		{"bad object name", minioErr.ErrorResponse{Code: "InvalidObjectName"}, errs.KindInvalidInput},
		{"access denied", minioErr.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.KindBackendFailure},
		{"canceled", context.Canceled, errs.KindBackendFailure},
		{"plain", errors.New("dial tcp: refused"), errs.KindBackendFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, got.Kind)
			assert.Contains(t, got.Error(), "op")
		})
	}

	assert.Nil(t, mapError(nil, "op"))
}

func TestIsInvalidRange(t *testing.T) {
	assert.True(t, isInvalidRange(minioErr.ErrorResponse{Code: "InvalidRange"}))
	assert.True(t, isInvalidRange(minioErr.ErrorResponse{StatusCode: http.StatusRequestedRangeNotSatisfiable}))
	assert.False(t, isInvalidRange(errors.New("other")))
}
