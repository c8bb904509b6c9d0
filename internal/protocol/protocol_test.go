package protocol

import "testing"

func TestParseInputCmdAcceptsValid(t *testing.T) {
	data := []byte(`{"type":"InputCmd","inputSeq":1,"moveX":0.5,"moveY":-1,"lookDeltaX":0,"lookDeltaY":0,"jump":false,"fire":true,"sprint":false}`)
	msg, err := ParseInputCmd(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MoveX != 0.5 || msg.MoveY != -1 {
		t.Fatalf("unexpected parsed fields: %+v", msg)
	}
}

func TestParseInputCmdRejectsOutOfRangeAxis(t *testing.T) {
	data := []byte(`{"type":"InputCmd","inputSeq":1,"moveX":2,"moveY":0}`)
	if _, err := ParseInputCmd(data); err == nil {
		t.Fatal("expected error for moveX out of range")
	}
}

func TestParseInputCmdRejectsNegativeSeq(t *testing.T) {
	data := []byte(`{"type":"InputCmd","inputSeq":-1,"moveX":0,"moveY":0}`)
	if _, err := ParseInputCmd(data); err == nil {
		t.Fatal("expected error for negative inputSeq")
	}
}

func TestParseInputCmdRejectsWrongType(t *testing.T) {
	data := []byte(`{"type":"Ping","inputSeq":1,"moveX":0,"moveY":0}`)
	if _, err := ParseInputCmd(data); err == nil {
		t.Fatal("expected error for mismatched type tag")
	}
}

func TestParseInputCmdRejectsOversized(t *testing.T) {
	big := make([]byte, MaxClientMessageBytes+1)
	for i := range big {
		big[i] = ' '
	}
	_, err := ParseInputCmd(big)
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
	pe, ok := err.(*ParseError)
	if !ok || pe.Code != ErrPayloadTooLarge {
		t.Fatalf("expected PayloadTooLarge, got %v", err)
	}
}

func TestParseClientHelloRequiresTokenAndConnectionID(t *testing.T) {
	data := []byte(`{"type":"ClientHello","protocolVersion":3,"sessionToken":"","connectionId":"c1"}`)
	if _, err := ParseClientHello(data); err == nil {
		t.Fatal("expected error for missing sessionToken")
	}
}

func TestBuildServerHelloUsesProtocolConstants(t *testing.T) {
	hello := BuildServerHello("conn1", "client1")
	if hello.ProtocolVersion != ProtocolVersion || hello.ServerTickRate != ServerTickRate {
		t.Fatalf("unexpected constants in ServerHello: %+v", hello)
	}
}

func TestBuildHitEventOmitsNegativeDamage(t *testing.T) {
	evt := BuildHitEvent(EventHitscanHit, "victim", -1, false)
	if evt.Damage != nil {
		t.Fatalf("expected nil damage for negative value, got %v", *evt.Damage)
	}
}

func TestBuildHitEventKeepsZeroDamage(t *testing.T) {
	evt := BuildHitEvent(EventShockwaveHit, "victim", 0, false)
	if evt.Damage == nil {
		t.Fatal("expected zero damage to be present, not omitted")
	}
	if *evt.Damage != 0 {
		t.Fatalf("expected damage 0, got %v", *evt.Damage)
	}
}

func TestParsePingRejectsNegativeTimestamp(t *testing.T) {
	data := []byte(`{"type":"Ping","clientTimeMs":-5}`)
	if _, err := ParsePing(data); err == nil {
		t.Fatal("expected error for negative clientTimeMs")
	}
}
