package runpod_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/dmorgan81/zimagebot/internal/runpod/runpodtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeImageRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 4096).Draw(rt, "data")
		got, err := runpod.DecodeImage(&runpod.Output{Image: runpod.EncodeImage(data)})
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		assert.Equal(rt, data, got)
	})
}

func TestDecodeImageUnpadded(t *testing.T) {
	data := []byte("turbo")
	got, err := runpod.DecodeImage(&runpod.Output{Image: base64.RawStdEncoding.EncodeToString(data)})
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecodeImageErrors(t *testing.T) {
	tests := []struct {
		name string
		out  *runpod.Output
		msg  string
	}{
		{name: "nil output", out: nil, msg: "no output in response"},
		{name: "missing image", out: &runpod.Output{Format: "base64"}, msg: "no image in response"},
		{name: "empty image", out: &runpod.Output{Image: runpod.EncodeImage(nil)}, msg: "no image in response"},
		{name: "bare output", out: decodeOutput(t, `"worker crashed"`), msg: "worker crashed"},
		{name: "output error", out: &runpod.Output{Error: json.RawMessage(`"CUDA out of memory"`)}, msg: "CUDA out of memory"},
		{name: "structured error", out: &runpod.Output{Error: json.RawMessage(`{"code":1}`)}, msg: `{"code":1}`},
		{name: "malformed", out: &runpod.Output{Image: "!!!not base64!!!"}, msg: "malformed image payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runpod.DecodeImage(tt.out)
			var re *runpod.RemoteError
			require.ErrorAs(t, err, &re)
			assert.Contains(t, re.Message, tt.msg)
		})
	}
}

func decodeOutput(t *testing.T, raw string) *runpod.Output {
	var out runpod.Output
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return &out
}

func TestOutputUnmarshal(t *testing.T) {
	out := decodeOutput(t, `{"image":"aGk=","seed":7,"error":null}`)
	assert.Equal(t, "aGk=", out.Image)
	assert.Equal(t, int64(7), *out.Seed)

	out = decodeOutput(t, ` ["oom"] `)
	assert.JSONEq(t, `["oom"]`, string(out.Error))
	assert.Empty(t, out.Image)
}

func TestDecodeImageIgnoresNullError(t *testing.T) {
	got, err := runpod.DecodeImage(&runpod.Output{Image: runpod.EncodeImage(runpodtest.PNG), Error: json.RawMessage("null")})
	require.NoError(t, err)
	assert.Equal(t, runpodtest.PNG, got)
}

func TestIsPNG(t *testing.T) {
	assert.True(t, runpod.IsPNG(runpodtest.PNG))
	assert.False(t, runpod.IsPNG([]byte("GIF89a")))
	assert.False(t, runpod.IsPNG(nil))
}
