package conditions

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	modified := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		cond *RequestConditions
		want map[string]string
	}{
		{
			name: "nil conditions send nothing",
			cond: nil,
			want: map[string]string{},
		},
		{
			name: "zero conditions send nothing",
			cond: &RequestConditions{},
			want: map[string]string{},
		},
		{
			name: "etag match",
			cond: &RequestConditions{IfMatch: `"0x8D"`},
			want: map[string]string{"If-Match": `"0x8D"`},
		},
		{
			name: "both match and none-match are sent, server arbitrates",
			cond: &RequestConditions{IfMatch: `"a"`, IfNoneMatch: `"b"`},
			want: map[string]string{"If-Match": `"a"`, "If-None-Match": `"b"`},
		},
		{
			name: "timestamps in RFC1123 GMT",
			cond: &RequestConditions{IfModifiedSince: modified, IfUnmodifiedSince: modified},
			want: map[string]string{
				"If-Modified-Since":   "Fri, 14 Mar 2025 09:26:53 GMT",
				"If-Unmodified-Since": "Fri, 14 Mar 2025 09:26:53 GMT",
			},
		},
		{
			name: "lease and tags filter",
			cond: &RequestConditions{LeaseID: "lease-1", TagsFilter: `"tier" = 'hot'`},
			want: map[string]string{
				"x-ms-lease-id": "lease-1",
				"x-ms-if-tags":  `"tier" = 'hot'`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			tt.cond.Apply(h)

			assert.Len(t, h, len(tt.want))
			for k, v := range tt.want {
				assert.Equal(t, v, h.Get(k))
			}
		})
	}
}

func TestApply_DoesNotMutateConditions(t *testing.T) {
	cond := &RequestConditions{IfMatch: `"a"`, LeaseID: "lease-1"}
	before := *cond

	cond.Apply(http.Header{})
	cond.Apply(http.Header{})

	assert.Equal(t, before, *cond)
}
