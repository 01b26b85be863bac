package protocol

import (
	"strings"
	"testing"
)

func TestDecodeCreateSession(t *testing.T) {
	raw := `{"type":"createsession","details":{"nickname":"alice","avatarId":3,"appVersion":"1.4.0"}}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != KindCreateSession {
		t.Fatalf("kind: got %s", msg.Kind)
	}
	cs := msg.CreateSession
	if cs == nil || cs.Nickname != "alice" || cs.AvatarID != 3 || cs.AppVersion != "1.4.0" {
		t.Fatalf("payload: got %+v", cs)
	}
}

func TestDecodeFramesWithoutDetails(t *testing.T) {
	for _, kind := range []Kind{KindStartGame, KindPong} {
		msg, err := Decode([]byte(`{"type":"` + string(kind) + `"}`))
		if err != nil {
			t.Fatalf("decode %s: %v", kind, err)
		}
		if msg.Kind != kind {
			t.Fatalf("kind: got %s, want %s", msg.Kind, kind)
		}
	}
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"type":`},
		{"unknown type", `{"type":"teleport"}`},
		{"missing details", `{"type":"vote"}`},
		{"details wrong shape", `{"type":"vote","details":"yes"}`},
		{"empty card id", `{"type":"vote","details":{"cardId":""}}`},
		{"empty player id", `{"type":"choose","details":{"playerId":""}}`},
		{"nickname too long", `{"type":"createsession","details":{"nickname":"` + strings.Repeat("x", 25) + `","appVersion":"1.0.0"}}`},
		{"negative avatar", `{"type":"joinsession","details":{"nickname":"bob","sessionId":"abcd1234","avatarId":-1,"appVersion":"1.0.0"}}`},
		{"bad app version", `{"type":"createsession","details":{"nickname":"bob","appVersion":"latest"}}`},
		{"missing session id", `{"type":"joinsession","details":{"nickname":"bob","appVersion":"1.0.0"}}`},
		{"voting duration off the enum", `{"type":"updateconfiguration","details":{"votingDurationSeconds":45,"maxScore":10}}`},
		{"max score off the enum", `{"type":"updateconfiguration","details":{"votingDurationSeconds":60,"maxScore":11}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !IsMalformed(err) {
				t.Fatalf("expected MalformedError, got %T: %v", err, err)
			}
		})
	}
}

func TestDecodeConfiguration(t *testing.T) {
	raw := `{"type":"updateconfiguration","details":{"votingDurationSeconds":90,"reader":false,"maxScore":15,"version18Plus":true}}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := msg.Configuration
	if cfg == nil || cfg.VotingDurationSeconds != 90 || cfg.MaxScore != 15 || !cfg.Version18Plus || cfg.Reader {
		t.Fatalf("payload: got %+v", cfg)
	}
}
