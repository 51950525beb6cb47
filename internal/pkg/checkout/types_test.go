package checkout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductIDDecodesNumberAndString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want ProductID
	}{
		{name: "number", body: `{"productId":42,"productType":"video"}`, want: 42},
		{name: "numeric string", body: `{"productId":"42","productType":"video"}`, want: 42},
		{name: "null", body: `{"productId":null,"productType":"video"}`, want: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.want, req.ProductID)
		})
	}
}

func TestProductIDRejectsNonNumericString(t *testing.T) {
	t.Parallel()

	var req Request
	err := json.Unmarshal([]byte(`{"productId":"abc","productType":"video"}`), &req)
	assert.Error(t, err)
}
