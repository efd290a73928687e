package tytx_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	tytx "github.com/genropy/genro-tytx-sub000"
	tytxjson "github.com/genropy/genro-tytx-sub000/format/json"
)

func TestEnvelope_LocalStructsAreNotPersisted(t *testing.T) {
	reg := tytx.NewRegistry()
	env := `XTYTX://{"gstruct":{"Y":{"v":"L"}},"lstruct":{"X":{"v":"N"}},"data":"TYTX://{\"v\":\"3.10\"}::@X"}`
	res, err := reg.ProcessEnvelopeText(env)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	v := res.Data.(map[string]any)["v"].(decimal.Decimal)
	if !v.Equal(decimal.RequireFromString("3.10")) {
		t.Fatalf("data = %#v", res.Data)
	}
	if _, ok := reg.Struct("X"); ok {
		t.Fatalf("lstruct X leaked into the registry")
	}
	y, ok := reg.Struct("Y")
	if !ok {
		t.Fatalf("gstruct Y was not installed")
	}
	if !reflect.DeepEqual(y.Def(), map[string]any{"v": "L"}) {
		t.Fatalf("Y = %#v", y.Def())
	}
}

func TestEnvelope_Precedence(t *testing.T) {
	reg := tytx.NewRegistry()
	_ = reg.RegisterStruct("Z", map[string]any{"v": "R"})

	env := map[string]any{
		"gstruct": map[string]any{"Z": map[string]any{"v": "T"}},
		"lstruct": map[string]any{"Z": map[string]any{"v": "L"}},
		"data":    `{"v":"4"}::@Z`,
	}
	res, err := reg.ProcessEnvelope(env)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Data.(map[string]any)["v"] != int64(4) {
		t.Fatalf("local struct did not win: %#v", res.Data)
	}
	z, _ := reg.Struct("Z")
	if f, _ := z.Field("v"); f.Type != "T" {
		t.Fatalf("gstruct did not overwrite the registry: %+v", f)
	}

	// without a local override the just-installed global wins
	res, _ = reg.ProcessEnvelope(map[string]any{"gstruct": map[string]any{}, "lstruct": map[string]any{}, "data": `{"v":"4"}::@Z`})
	if res.Data.(map[string]any)["v"] != "4" {
		t.Fatalf("global struct not used: %#v", res.Data)
	}
}

func TestEnvelope_MissingFields(t *testing.T) {
	reg := tytx.NewRegistry()
	for _, missing := range []string{"gstruct", "lstruct", "data"} {
		env := map[string]any{"gstruct": map[string]any{}, "lstruct": map[string]any{}, "data": ""}
		delete(env, missing)
		_, err := reg.ProcessEnvelope(env)
		if !errors.Is(err, tytx.ErrMissingField) {
			t.Fatalf("missing %s: got %v", missing, err)
		}
		if e, _ := tytx.AsError(err); e.Fragment != missing {
			t.Fatalf("fragment = %q, want %q", e.Fragment, missing)
		}
	}
}

func TestEnvelope_EmptyDataReturnsValidations(t *testing.T) {
	reg := tytx.NewRegistry()
	res, err := reg.ProcessEnvelope(map[string]any{
		"gstruct":     map[string]any{},
		"lstruct":     map[string]any{},
		"gvalidation": map[string]any{"g1": map[string]any{"len": 2}},
		"lvalidation": map[string]any{"l1": "reg:\"[a-z]+\""},
		"data":        "TYTX://",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Data != nil {
		t.Fatalf("data = %#v, want nil", res.Data)
	}
	if _, ok := res.GlobalValidations["g1"]; !ok {
		t.Fatalf("global validations not returned")
	}
	if _, ok := res.LocalValidations["l1"]; !ok {
		t.Fatalf("local validations not returned")
	}
	if _, ok := reg.Validation("g1"); !ok {
		t.Fatalf("gvalidation not installed")
	}
	if _, ok := reg.Validation("l1"); ok {
		t.Fatalf("lvalidation leaked into the registry")
	}

	ok, err := reg.Validate("ab", "l1&g1", res.LocalValidations, res.GlobalValidations)
	if err != nil || !ok {
		t.Fatalf("validate with envelope sets = %v, %v", ok, err)
	}
}

func TestEnvelope_MalformedInstallsNothing(t *testing.T) {
	reg := tytx.NewRegistry()
	_, err := reg.ProcessEnvelope(map[string]any{
		"gstruct": map[string]any{"A": []any{"L"}, "B": []any{}},
		"lstruct": map[string]any{},
		"data":    "",
	})
	if !errors.Is(err, tytx.ErrSchemaInvalid) {
		t.Fatalf("expected schema_invalid, got %v", err)
	}
	if len(reg.StructCodes()) != 0 {
		t.Fatalf("partial install: %v", reg.StructCodes())
	}

	_, err = reg.ProcessEnvelopeText(`XTYTX:[1,2]`)
	if !errors.Is(err, tytx.ErrInvalidValue) {
		t.Fatalf("non-JSON envelope: %v", err)
	}
	_, err = reg.ProcessEnvelopeText(`[1,2]`)
	if !errors.Is(err, tytx.ErrTypeMismatch) {
		t.Fatalf("array envelope: %v", err)
	}
}

func TestEncodeEnvelope_RoundTrip(t *testing.T) {
	sender := tytx.NewRegistry()
	text, err := sender.EncodeEnvelope(
		map[string]any{"price": decimal.RequireFromString("9.90"), "qty": int64(2)},
		map[string]any{"ITEM": map[string]any{"price": "N"}},
		map[string]any{"LOCAL": tytx.ListSchema("L")},
		tytx.ValidationSet{"g": mustValidation(t, "len:1")},
		nil,
	)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(text, tytx.EnvelopePrefix) || !strings.Contains(text, tytx.DataPrefix) {
		t.Fatalf("prefixes missing: %s", text)
	}

	receiver := tytx.NewRegistry()
	res, err := receiver.ProcessEnvelopeText(text)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	m := res.Data.(map[string]any)
	if !m["price"].(decimal.Decimal).Equal(decimal.RequireFromString("9.9")) || m["qty"] != int64(2) {
		t.Fatalf("data = %#v", m)
	}
	if _, ok := receiver.Struct("ITEM"); !ok {
		t.Fatalf("gstruct not installed on receiver")
	}
	if _, ok := receiver.Struct("LOCAL"); ok {
		t.Fatalf("lstruct installed on receiver")
	}
	if _, ok := receiver.Validation("g"); !ok {
		t.Fatalf("gvalidation not installed on receiver")
	}
}

func TestPackageProcessEnvelope(t *testing.T) {
	res, err := tytx.ProcessEnvelope(`{"gstruct":{},"lstruct":{},"data":"7::L"}`)
	if err != nil || res.Data != int64(7) {
		t.Fatalf("ProcessEnvelope = %#v, %v", res, err)
	}
}

func TestEnvelope_TypedJSONData(t *testing.T) {
	sender := tytx.NewRegistry()
	body, err := tytxjson.Marshal(sender, map[string]any{
		"price": decimal.RequireFromString("9.99"),
		"items": []any{int64(1), int64(2)},
		"note":  "plain",
	}, tytxjson.WithPrefix())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	reg := tytx.NewRegistry()
	res, err := reg.ProcessEnvelope(map[string]any{"gstruct": map[string]any{}, "lstruct": map[string]any{}, "data": string(body)})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	m, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v, want a map", res.Data)
	}
	if p, ok := m["price"].(decimal.Decimal); !ok || !p.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("price = %#v", m["price"])
	}
	if !reflect.DeepEqual(m["items"], []any{int64(1), int64(2)}) || m["note"] != "plain" {
		t.Fatalf("data = %#v", m)
	}

	// leaves may name envelope-local structs
	res, err = reg.ProcessEnvelope(map[string]any{
		"gstruct": map[string]any{},
		"lstruct": map[string]any{"P": "x:R,y:R"},
		"data":    `TYTX://{"at":"[1.5,2]::@P","n":"3::L"}`,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := map[string]any{"at": map[string]any{"x": 1.5, "y": float64(2)}, "n": int64(3)}
	if !reflect.DeepEqual(res.Data, want) {
		t.Fatalf("data = %#v", res.Data)
	}
}

func TestEnvelope_BadDataInstallsNothing(t *testing.T) {
	reg := tytx.NewRegistry()
	_, err := reg.ProcessEnvelope(map[string]any{
		"gstruct":     map[string]any{"G": []any{"L"}},
		"lstruct":     map[string]any{},
		"gvalidation": map[string]any{"g": "len:1"},
		"data":        "[1,x]::#L",
	})
	if !errors.Is(err, tytx.ErrInvalidValue) {
		t.Fatalf("expected invalid_value, got %v", err)
	}
	if _, ok := reg.Struct("G"); ok {
		t.Fatalf("gstruct installed despite bad data")
	}
	if _, ok := reg.Validation("g"); ok {
		t.Fatalf("gvalidation installed despite bad data")
	}

	// data may still use a struct the same envelope installs
	res, err := reg.ProcessEnvelope(map[string]any{
		"gstruct": map[string]any{"G": []any{"L"}},
		"lstruct": map[string]any{},
		"data":    `["1","2"]::@G`,
	})
	if err != nil || !reflect.DeepEqual(res.Data, []any{int64(1), int64(2)}) {
		t.Fatalf("gstruct data = %#v, %v", res, err)
	}
}

func TestEnvelope_CheckWithEnvelopeDefinitions(t *testing.T) {
	reg := tytx.NewRegistry()
	res, err := reg.ProcessEnvelope(map[string]any{
		"gstruct": map[string]any{},
		"lstruct": map[string]any{
			"U": map[string]any{"code": map[string]any{"type": "T", "validate": map[string]any{"rule": "cap&short"}}},
		},
		"gvalidation": map[string]any{"short": "max:5"},
		"lvalidation": map[string]any{"cap": `reg:"[0-9]{5}"`},
		"data":        `{"code":"1234"}::@U`,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, ok := res.LocalStructs["U"]; !ok {
		t.Fatalf("local structs not returned: %#v", res.LocalStructs)
	}

	iss, err := reg.CheckStruct(res.Data, "U", res.LocalStructs, tytx.WithValidations(res.LocalValidations, res.GlobalValidations))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(iss) != 1 || iss[0].Rule != "cap" || iss[0].Path != "/code" {
		t.Fatalf("issues = %#v", iss)
	}

	if _, err := reg.CheckStruct(res.Data, "U", res.LocalStructs); !errors.Is(err, tytx.ErrUnknownValidation) {
		t.Fatalf("without the envelope sets cap must be unknown, got %v", err)
	}
	iss, err = reg.CheckFields(map[string]any{"code": "12345"}, res.LocalStructs["U"].Fields, "",
		tytx.WithValidations(res.LocalValidations, res.GlobalValidations))
	if err != nil || len(iss) != 0 {
		t.Fatalf("CheckFields = %v, %v", iss, err)
	}
}
