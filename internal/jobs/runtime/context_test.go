package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/guildmind-backend/internal/domain"
)

func testContext(t *testing.T, payload string) *Context {
	t.Helper()
	job := &types.Job{
		ID:      uuid.New(),
		JobType: types.JobTypeSessionize,
		Payload: datatypes.JSON([]byte(payload)),
	}
	return NewContext(context.Background(), nil, job, nil)
}

func TestPayloadInt64ParsesStringsAndNumbers(t *testing.T) {
	jc := testContext(t, `{"guild_id":"123456789012345678","around":42}`)

	if v, ok := jc.PayloadInt64("guild_id"); !ok || v != 123456789012345678 {
		t.Fatalf("string snowflake: got (%d, %v)", v, ok)
	}
	if v, ok := jc.PayloadInt64("around"); !ok || v != 42 {
		t.Fatalf("number: got (%d, %v)", v, ok)
	}
	if _, ok := jc.PayloadInt64("missing"); ok {
		t.Fatalf("missing key must report false")
	}
}

func TestPayloadUUID(t *testing.T) {
	id := uuid.New()
	jc := testContext(t, `{"session_id":"`+id.String()+`"}`)
	got, ok := jc.PayloadUUID("session_id")
	if !ok || got != id {
		t.Fatalf("got (%s, %v)", got, ok)
	}
	if _, ok := jc.PayloadUUID("nope"); ok {
		t.Fatalf("missing uuid must report false")
	}
}

func TestPayloadInt64Slice(t *testing.T) {
	jc := testContext(t, `{"message_ids":["1","2",3]}`)
	got := jc.PayloadInt64Slice("message_ids")
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestMalformedPayloadYieldsEmptyMap(t *testing.T) {
	jc := testContext(t, `{not json`)
	if len(jc.Payload()) != 0 {
		t.Fatalf("malformed payload must decode to empty map")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	h := &stubHandler{typ: "x"}
	if err := reg.Register(h); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register(&stubHandler{typ: "x"}); err == nil {
		t.Fatalf("duplicate register must fail")
	}
	if err := reg.Register(nil); err == nil {
		t.Fatalf("nil handler must fail")
	}
	if got, ok := reg.Get("x"); !ok || got != h {
		t.Fatalf("lookup failed")
	}
	if _, ok := reg.Get("y"); ok {
		t.Fatalf("unknown type must miss")
	}
}

type stubHandler struct{ typ string }

func (s *stubHandler) Type() string            { return s.typ }
func (s *stubHandler) Run(ctx *Context) error  { return nil }
