package payload

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payheroCallback = `{
	"forward_url": "",
	"response": {
		"Amount": 50,
		"CheckoutRequestID": "ws_CO_14102026_1",
		"ExternalReference": "TOPUP-1-1000",
		"MerchantRequestID": "3202-70921557-1",
		"MpesaReceiptNumber": "SJE3XXXXXX",
		"Phone": "+254712345678",
		"ResultCode": 0,
		"ResultDesc": "The service request is processed successfully.",
		"Status": "Success"
	},
	"status": true
}`

func TestResolvePayheroCallback(t *testing.T) {
	doc, err := Extract([]byte(payheroCallback))
	require.NoError(t, err)

	ev := Resolve(doc)
	assert.Equal(t, "TOPUP-1-1000", ev.Reference)
	assert.Equal(t, "0", ev.ResultCode)
	assert.Equal(t, "Success", ev.Status, "boolean top-level status must be skipped")
	assert.Equal(t, "ws_CO_14102026_1", ev.CheckoutID)
	assert.Equal(t, "SJE3XXXXXX", ev.Receipt)
	assert.True(t, ev.Succeeded())
	assert.Equal(t, []string{"forward_url", "response", "status"}, doc.Keys())
}

func TestResolveFlatPayload(t *testing.T) {
	doc, err := Extract([]byte(`{"external_reference": "TOPUP-1-1000", "ResultCode": 0}`))
	require.NoError(t, err)

	ev := Resolve(doc)
	assert.Equal(t, "TOPUP-1-1000", ev.Reference)
	assert.True(t, ev.Succeeded())
}

func TestResolveFailedStatus(t *testing.T) {
	doc, err := Extract([]byte(`{"Status": "Failed", "external_reference": "PUR-1-m1-1000"}`))
	require.NoError(t, err)

	ev := Resolve(doc)
	assert.True(t, ev.HasReference())
	assert.False(t, ev.Succeeded())
}

func TestSucceeded(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"zero code", Event{ResultCode: "0"}, true},
		{"non zero code", Event{ResultCode: "1032"}, false},
		{"status ok", Event{Status: " OK "}, true},
		{"status completed", Event{Status: "Completed"}, true},
		{"code fails status succeeds", Event{ResultCode: "1", Status: "success"}, true},
		{"unparsable code", Event{ResultCode: "zero"}, false},
		{"padded zero code", Event{ResultCode: "00"}, true},
		{"signed zero code", Event{ResultCode: "+0"}, false},
		{"negative zero code", Event{ResultCode: "-0"}, false},
		{"spaced zero code", Event{ResultCode: " 0"}, false},
		{"nothing", Event{}, false},
		{"cancelled", Event{Status: "Cancelled"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Succeeded())
		})
	}
}

func TestAliasPriorityWithinObject(t *testing.T) {
	doc, err := Extract([]byte(`{"reference": "second", "ExternalReference": "first"}`))
	require.NoError(t, err)
	assert.Equal(t, "first", Resolve(doc).Reference)
}

func TestShallowestMatchWins(t *testing.T) {
	doc, err := Extract([]byte(`{"a": {"b": {"reference": "deep"}}, "z": {"reference_no": "shallow"}}`))
	require.NoError(t, err)
	assert.Equal(t, "shallow", Resolve(doc).Reference)
}

func TestSearchIntoArrays(t *testing.T) {
	doc, err := Extract([]byte(`{"data": [{"x": 1}, {"externalReference": "in-array", "result_code": "0"}]}`))
	require.NoError(t, err)

	ev := Resolve(doc)
	assert.Equal(t, "in-array", ev.Reference)
	assert.Equal(t, "0", ev.ResultCode)
}

func TestMissingFields(t *testing.T) {
	doc, err := Extract([]byte(`{"foo": {"bar": [1, 2, "three"]}, "reference": ""}`))
	require.NoError(t, err)

	ev := Resolve(doc)
	assert.False(t, ev.HasReference())
	assert.Empty(t, ev.ResultCode)
	assert.False(t, ev.Succeeded())
}

func TestExtractFallbacks(t *testing.T) {
	form := "payload=" + url.QueryEscape(`{"external_reference":"TOPUP-9-1","ResultCode":0}`)

	tests := []struct {
		name string
		body string
	}{
		{"text around json", `callback: {"external_reference":"TOPUP-9-1","ResultCode":0} end`},
		{"form wrapped", `payload={"external_reference":"TOPUP-9-1","ResultCode":0}`},
		{"form encoded", form},
		{"json string", `"{\"external_reference\":\"TOPUP-9-1\",\"ResultCode\":0}"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Extract([]byte(tt.body))
			require.NoError(t, err)
			ev := Resolve(doc)
			assert.Equal(t, "TOPUP-9-1", ev.Reference)
			assert.True(t, ev.Succeeded())
		})
	}
}

func TestExtractMalformed(t *testing.T) {
	for _, body := range []string{"", "not json", "{broken", "42", `"just text"`} {
		_, err := Extract([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPayload, body)
	}
}

func TestIsEmpty(t *testing.T) {
	doc, err := Extract([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())

	doc, err = Extract([]byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.False(t, doc.IsEmpty())
}

func TestFromValue(t *testing.T) {
	doc := FromValue(map[string]interface{}{"reference": "R-1", "status": "ok"})
	ev := Resolve(doc)
	assert.Equal(t, "R-1", ev.Reference)
	assert.True(t, ev.Succeeded())
	assert.NotEmpty(t, doc.Raw())
}
