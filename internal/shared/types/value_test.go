package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesPreserveInsertionOrder(t *testing.T) {
	var attrs Attributes
	attrs.Set("zeta", String("last-alpha"))
	attrs.Set("alpha", Int(1))
	attrs.Set("mid", Bool(true))

	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"last-alpha","alpha":1,"mid":true}`, string(data))

	var decoded Attributes
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, decoded.Keys())
	assert.True(t, attrs.Equal(decoded))
}

func TestAttributesSetReplacesInPlace(t *testing.T) {
	var attrs Attributes
	attrs.Set("a", Int(1))
	attrs.Set("b", Int(2))
	attrs.Set("a", String("x"))

	assert.Equal(t, 2, attrs.Len())
	assert.Equal(t, []string{"a", "b"}, attrs.Keys())

	v, ok := attrs.Get("a")
	require.True(t, ok)
	assert.Equal(t, "x", v.AsString())
}

func TestUnsetValuesNeverEncoded(t *testing.T) {
	var attrs Attributes
	attrs.Set("unset", Value{})
	attrs.Set("amount", Int(7))
	assert.Equal(t, []string{"amount"}, attrs.Keys())

	literal := Attributes{
		{Key: "a", Value: Value{}},
		{Key: "nested", Value: Map(Attribute{Key: "b", Value: Value{}}, Attribute{Key: "c", Value: Bool(true)})},
		{Key: "d", Value: Value{}},
	}
	data, err := json.Marshal(literal)
	require.NoError(t, err)
	assert.Equal(t, `{"nested":{"c":true}}`, string(data))

	var decoded Attributes
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"nested"}, decoded.Keys())
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
		kind     Kind
	}{
		{name: "string", value: String("hello \"world\""), expected: `"hello \"world\""`, kind: KindString},
		{name: "int", value: Int64(-42), expected: `-42`, kind: KindInt},
		{name: "float", value: Float(12.5), expected: `12.5`, kind: KindFloat},
		{name: "integral float", value: Float(3), expected: `3.0`, kind: KindFloat},
		{name: "large float", value: Float(1e21), expected: `1e+21`, kind: KindFloat},
		{name: "bool", value: Bool(false), expected: `false`, kind: KindBool},
		{
			name:     "nested map",
			value:    Map(Attribute{Key: "b", Value: Int(2)}, Attribute{Key: "a", Value: Map()}),
			expected: `{"b":2,"a":{}}`,
			kind:     KindMap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))

			var decoded Value
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.kind, decoded.Kind())
			assert.True(t, tt.value.Equal(decoded), "round trip changed %s", tt.name)
		})
	}
}

func TestFloatNonFiniteStoredAsString(t *testing.T) {
	assert.Equal(t, String("NaN"), Float(math.NaN()))
	assert.Equal(t, String("+Inf"), Float(math.Inf(1)))
	assert.Equal(t, String("-Inf"), Float(math.Inf(-1)))
}

func TestValueRejectsUnsupportedJSON(t *testing.T) {
	var attrs Attributes
	err := json.Unmarshal([]byte(`{"list":[1,2]}`), &attrs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	err = json.Unmarshal([]byte(`{"missing":null}`), &attrs)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(map[string]any{
		"b": 2,
		"a": "x",
		"c": map[string]any{"ok": true},
	})
	require.NoError(t, err)
	require.Equal(t, KindMap, v.Kind())
	assert.Equal(t, []string{"a", "b", "c"}, v.AsMap().Keys())

	_, err = ValueOf([]int{1})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	f, err := ValueOf(float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, 1.5, f.AsFloat())
}

func TestAttributesMergeAndClone(t *testing.T) {
	var base Attributes
	base.Set("service", String("payments"))
	base.Set("nested", Map(Attribute{Key: "x", Value: Int(1)}))

	var extra Attributes
	extra.Set("region", String("eu"))
	extra.Set("service", String("refunds"))

	merged := base.Merge(extra)
	assert.Equal(t, []string{"service", "nested", "region"}, merged.Keys())

	svc, _ := merged.Get("service")
	assert.Equal(t, "refunds", svc.AsString())

	orig, _ := base.Get("service")
	assert.Equal(t, "payments", orig.AsString())

	clone := base.Clone()
	nested := clone[1].Value.AsMap()
	nested.Set("x", Int(99))
	inner, _ := base[1].Value.AsMap().Get("x")
	assert.Equal(t, int64(1), inner.AsInt())
}

func TestTraceJSONShape(t *testing.T) {
	var attrs Attributes
	attrs.Set("amount", Float(10.25))

	trace := Trace{
		TraceID: "t-1",
		Spans: []SpanData{
			{Name: "ok", StartTime: 10, EndTime: 30, Duration: 20, Status: StatusSuccess},
			{
				Name: "bad", StartTime: 40, EndTime: 45, Duration: 5, Status: StatusError,
				Error:      &ErrorData{Message: "boom", Code: "E1"},
				Attributes: attrs,
			},
		},
	}

	data, err := json.Marshal(trace)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"traceId":"t-1",
		"spans":[
			{"name":"ok","startTime":10,"endTime":30,"duration":20,"status":"success"},
			{"name":"bad","startTime":40,"endTime":45,"duration":5,"status":"error",
			 "error":{"message":"boom","code":"E1"},"attributes":{"amount":10.25}}
		],
		"metadata":{}
	}`, string(data))

	var decoded Trace
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Metadata)
	assert.Nil(t, decoded.Spans[0].Attributes)
	assert.True(t, decoded.Spans[1].Attributes.Equal(attrs))
	assert.True(t, decoded.Spans[1].Failed())
}
