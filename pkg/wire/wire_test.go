package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/datahub/pkg/hub"
)

func TestEncodeValue(t *testing.T) {
	t.Run("utf8 stays readable", func(t *testing.T) {
		v, enc := EncodeValue([]byte("50"))
		assert.Equal(t, "50", v)
		assert.Equal(t, EncodingUTF8, enc)
	})

	t.Run("binary goes base64", func(t *testing.T) {
		raw := []byte{0xff, 0x00, 0xfe}
		v, enc := EncodeValue(raw)
		assert.Equal(t, EncodingBase64, enc)

		back, err := DecodeValue(v, enc)
		require.NoError(t, err)
		assert.Equal(t, raw, back)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := DecodeValue("x", "rot13")
		assert.Error(t, err)
	})
}

func TestReadResponse(t *testing.T) {
	t.Run("empty ready value keeps its value field", func(t *testing.T) {
		resp := NewReadResponse(hub.Result{Key: "k", Status: hub.StatusReady, Value: []byte{}, Version: 1})
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"READY","key":"k","value":"","encoding":"utf8","version":1}`, string(data))
	})

	t.Run("timeout has no value field", func(t *testing.T) {
		resp := NewReadResponse(hub.Result{Key: "k", Status: hub.StatusTimeout})
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"TIMEOUT","key":"k"}`, string(data))

		res, err := resp.Result()
		require.NoError(t, err)
		assert.Equal(t, hub.StatusTimeout, res.Status)
		assert.Nil(t, res.Value)
	})

	t.Run("ready without value is malformed", func(t *testing.T) {
		_, err := ReadResponse{Status: hub.StatusReady, Key: "k"}.Result()
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("only hub statuses are accepted", func(t *testing.T) {
		for _, st := range []hub.Status{hub.StatusTimeout, hub.StatusCancelled, hub.StatusPending} {
			res, err := ReadResponse{Status: st, Key: "k"}.Result()
			require.NoError(t, err)
			assert.Equal(t, st, res.Status)
		}

		for _, st := range []hub.Status{"", "ready", "MAYBE"} {
			_, err := ReadResponse{Status: st, Key: "k"}.Result()
			assert.ErrorIs(t, err, ErrMalformed, "status %q", st)
		}
	})
}

func TestWriteResponseAck(t *testing.T) {
	ack, err := WriteResponse{Status: StatusOK, Key: "k", Version: 2, Notified: 1}.Ack()
	require.NoError(t, err)
	assert.Equal(t, hub.WriteAck{Key: "k", Version: 2, Notified: 1}, ack)

	_, err = WriteResponse{}.Ack()
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = WriteResponse{Status: StatusOK, Key: "k"}.Ack()
	assert.ErrorIs(t, err, ErrMalformed, "version 0 was never assigned")

	_, err = WriteResponse{Status: StatusError, Key: "k", Version: 1}.Ack()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWriteEvent(t *testing.T) {
	ev := NewWriteEvent("lab", hub.WriteEvent{
		Key:       "X_Data",
		Value:     []byte("50"),
		Version:   3,
		Notified:  2,
		WrittenAt: time.UnixMilli(1700000000000),
	})

	assert.Equal(t, "lab", ev.Instance)
	assert.Equal(t, "50", ev.Value)
	assert.Equal(t, int64(1700000000000), ev.WrittenAtMs)
	assert.NoError(t, ev.Validate())

	bad := *ev
	bad.Version = 0
	assert.Error(t, bad.Validate())

	bad = *ev
	bad.Key = ""
	assert.ErrorIs(t, bad.Validate(), hub.ErrInvalidKey)
}
