package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"profitrate/ml"
)

func TestWebsocketPredict(t *testing.T) {
	handler, _ := newTestHandler(t, &ml.LinearModel{Slope: 2, Intercept: 1})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/predict"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := func(input string) map[string]interface{} {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(input)); err != nil {
			t.Fatalf("write %q: %v", input, err)
		}
		var reply map[string]interface{}
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read reply to %q: %v", input, err)
		}
		return reply
	}

	if reply := send("10"); reply["display"] != "21.00" {
		t.Fatalf("unexpected reply: %v", reply)
	}

	reply := send("abc")
	if reply["input"] != "abc" || !strings.Contains(reply["error"].(string), "invalid profit") {
		t.Fatalf("unexpected error frame: %v", reply)
	}

	reply = send("1e308")
	if reply["input"] != "1e308" || !strings.Contains(reply["error"].(string), "out of range") {
		t.Fatalf("unexpected error frame: %v", reply)
	}

	if reply := send("0"); reply["display"] != "1.00" {
		t.Fatalf("connection should survive error frames, got %v", reply)
	}
}
