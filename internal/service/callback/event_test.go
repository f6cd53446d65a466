package callback

import (
	"errors"
	"testing"
)

func TestParseEventInvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte("not json at all"))
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestParseEventMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing type", `{"deviceId":"d1"}`},
		{"missing deviceId", `{"type":"message"}`},
		{"empty object", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tc.body))
			if !errors.Is(err, ErrInvalidData) {
				t.Fatalf("expected ErrInvalidData, got %v", err)
			}
		})
	}
}

func TestParseEventMessage(t *testing.T) {
	body := `{
		"type": "message",
		"deviceId": "device-001",
		"messageId": "msg-1",
		"msgId": "raw-1",
		"newMsgId": "new-1",
		"messageType": "text",
		"senderId": "wxid_sender",
		"content": "hello",
		"timestamp": 1700000000
	}`
	ev, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != EventTypeMessage || ev.DeviceId != "device-001" {
		t.Fatalf("unexpected envelope: %+v", ev)
	}
	if ev.Message == nil {
		t.Fatal("message payload not parsed")
	}
	if ev.Message.MessageId != "msg-1" || ev.Message.SenderId != "wxid_sender" {
		t.Fatalf("unexpected payload: %+v", ev.Message)
	}
	if ev.Message.Timestamp != 1700000000 {
		t.Fatalf("timestamp not parsed: %d", ev.Message.Timestamp)
	}
}

func TestParseEventMessageFromUser(t *testing.T) {
	// fromUser 写法的发送方字段要统一到 SenderId
	body := `{"type":"message","deviceId":"d1","fromUser":"u1","content":"hi","messageType":"text"}`
	ev, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Message.SenderId != "u1" || ev.Message.Content != "hi" || ev.Message.MessageType != "text" {
		t.Fatalf("flat payload not parsed: %+v", ev.Message)
	}
}

func TestParseEventMessageNestedData(t *testing.T) {
	// 嵌套 data 的兼容写法，覆盖顶层同名字段
	body := `{"type":"message","deviceId":"d1","content":"outer","data":{"messageId":"msg-1","senderId":"wxid_s","messageType":"text","content":"inner"}}`
	ev, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Message.MessageId != "msg-1" || ev.Message.SenderId != "wxid_s" || ev.Message.Content != "inner" {
		t.Fatalf("nested payload not parsed: %+v", ev.Message)
	}
}

func TestParseEventLogin(t *testing.T) {
	body := `{"type":"login","deviceId":"d1","status":"success","wxId":"wxid_1","nickname":"张三"}`
	ev, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Login == nil || ev.Login.Status != "success" || ev.Login.WxId != "wxid_1" {
		t.Fatalf("unexpected login payload: %+v", ev.Login)
	}
}

func TestParseEventUnknownType(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"something_new","deviceId":"d1","data":{"x":1}}`))
	if err != nil {
		t.Fatalf("unknown type should parse, got %v", err)
	}
	if ev.Type != "something_new" {
		t.Fatalf("unexpected type: %s", ev.Type)
	}
}

func TestParseEventBadPayload(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"message","deviceId":"d1","data":"not an object"}`))
	if !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}
