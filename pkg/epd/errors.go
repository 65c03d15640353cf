package epd

import (
	"fmt"

	"github.com/ekaya-inc/epd-normalizer/pkg/apperrors"
)

// Structural document errors. All of them match apperrors.ErrInvalidDocument.
var (
	ErrMalformedJSON          = fmt.Errorf("%w: malformed JSON", apperrors.ErrInvalidDocument)
	ErrMissingUUID            = fmt.Errorf("%w: missing dataset UUID", apperrors.ErrInvalidDocument)
	ErrMissingVersion         = fmt.Errorf("%w: missing dataset version", apperrors.ErrInvalidDocument)
	ErrMissingReferenceFlow   = fmt.Errorf("%w: missing reference flow", apperrors.ErrInvalidDocument)
	ErrReferenceFlowNotFound  = fmt.Errorf("%w: no exchange matches the reference flow", apperrors.ErrInvalidDocument)
	ErrAmbiguousReferenceFlow = fmt.Errorf("%w: several exchanges match the reference flow", apperrors.ErrInvalidDocument)
)
