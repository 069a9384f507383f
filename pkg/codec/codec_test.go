package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/quarry/pkg/types"
)

func TestRoundTrip(t *testing.T) {
	processedAt := uint64(200)

	tests := []struct {
		name   string
		record interface{}
		decode func() interface{}
	}{
		{
			name: "task",
			record: types.Task{
				ID:               "T1",
				Extractor:        "minilm",
				ExtractionPolicy: "embed-pdfs",
				Namespace:        "docs",
				ContentID:        "C1",
				Outcome:          types.TaskOutcomeUnknown,
			},
			decode: func() interface{} { return &types.Task{} },
		},
		{
			name: "executor",
			record: types.ExecutorMetadata{
				ID:       "E1",
				LastSeen: 100,
				Addr:     "1.2.3.4:9000",
				Extractor: types.ExtractorDescription{
					Name:           "minilm",
					InputMimeTypes: []string{"application/pdf"},
				},
			},
			decode: func() interface{} { return &types.ExecutorMetadata{} },
		},
		{
			name: "content",
			record: types.ContentMetadata{
				ID:          "C1",
				Namespace:   "docs",
				Name:        "report.pdf",
				ContentType: "application/pdf",
				Labels:      map[string]string{"source": "upload"},
				Size:        4096,
				CreatedAt:   100,
			},
			decode: func() interface{} { return &types.ContentMetadata{} },
		},
		{
			name: "extraction policy",
			record: types.ExtractionPolicy{
				ID:        "P1",
				Name:      "embed-pdfs",
				Namespace: "docs",
				Extractor: "minilm",
				Filters:   map[string]string{"content_type": "application/pdf"},
			},
			decode: func() interface{} { return &types.ExtractionPolicy{} },
		},
		{
			name: "schema",
			record: types.StructuredDataSchema{
				ID:        "S1",
				Namespace: "docs",
				Columns:   map[string]string{"embedding": "vector", "page": "int"},
			},
			decode: func() interface{} { return &types.StructuredDataSchema{} },
		},
		{
			name: "index",
			record: types.Index{
				Name:      "docs-embeddings",
				Namespace: "docs",
				TableName: "docs.embeddings",
				Extractor: "minilm",
			},
			decode: func() interface{} { return &types.Index{} },
		},
		{
			name: "state change",
			record: types.StateChange{
				ID:          "SC1",
				ObjectID:    "C1",
				ChangeType:  types.ChangeTypeNewContent,
				CreatedAt:   100,
				ProcessedAt: &processedAt,
			},
			decode: func() interface{} { return &types.StateChange{} },
		},
		{
			name: "policy mapping",
			record: types.ContentExtractionPolicyMapping{
				ContentID:              "C1",
				ExtractionPolicyNames:  types.NewStringSet("embed-pdfs", "ocr"),
				TimeOfPolicyCompletion: map[string]uint64{"ocr": 150},
			},
			decode: func() interface{} { return &types.ContentExtractionPolicyMapping{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.record)
			require.NoError(t, err)

			decoded := tt.decode()
			require.NoError(t, Decode(encoded, decoded))

			reencoded, err := Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, string(encoded), string(reencoded))
		})
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	// Same logical record, sets built in different insertion orders.
	a := types.ContentExtractionPolicyMapping{
		ContentID:              "C1",
		ExtractionPolicyNames:  types.NewStringSet("x", "y", "z"),
		TimeOfPolicyCompletion: map[string]uint64{"z": 3, "x": 1, "y": 2},
	}
	b := types.ContentExtractionPolicyMapping{
		ContentID:              "C1",
		ExtractionPolicyNames:  types.NewStringSet("z", "y", "x"),
		TimeOfPolicyCompletion: map[string]uint64{"x": 1, "y": 2, "z": 3},
	}

	encodedA, err := Encode(a)
	require.NoError(t, err)
	encodedB, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, string(encodedA), string(encodedB))
}

func TestDecodeMalformed(t *testing.T) {
	var task types.Task
	err := Decode([]byte("{not json"), &task)
	require.Error(t, err)

	var codecErr *CodecError
	assert.True(t, errors.As(err, &codecErr))
	assert.Equal(t, "decode", codecErr.Op)
}
