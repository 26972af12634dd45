package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-api/internal/model"
)

func startFeedServer(t *testing.T, feed *ItemFeed) *httptest.Server {
	t.Helper()

	router := mux.NewRouter()
	feed.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

func dialFeed(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/items"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFeedMessage(t *testing.T, conn *websocket.Conn) model.FeedMessage {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	var msg model.FeedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForSubscribers(t *testing.T, feed *ItemFeed, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for feed.Subscribers() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Subscribers() = %d, want %d", feed.Subscribers(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestItemFeed_HelloThenPublish(t *testing.T) {
	// Arrange
	feed := NewItemFeed("", zap.NewNop())
	srv := startFeedServer(t, feed)
	conn := dialFeed(t, srv, nil)

	hello := readFeedMessage(t, conn)
	if hello.Type != model.FeedMessageTypeHello {
		t.Fatalf("first message type = %s, want %s", hello.Type, model.FeedMessageTypeHello)
	}
	waitForSubscribers(t, feed, 1)

	// Act
	category := "fashion"
	feed.Publish(model.NewItemCreatedMessage(model.ItemView{ID: 1, Name: "jacket", Category: &category, Image: "abc"}))

	// Assert
	msg := readFeedMessage(t, conn)
	if msg.Type != model.FeedMessageTypeItemCreated {
		t.Fatalf("type = %s, want %s", msg.Type, model.FeedMessageTypeItemCreated)
	}
	if msg.Item == nil || msg.Item.Name != "jacket" || *msg.Item.Category != "fashion" {
		t.Errorf("item = %+v", msg.Item)
	}
}

func TestItemFeed_RejectsForeignOrigin(t *testing.T) {
	feed := NewItemFeed("http://localhost:3000", zap.NewNop())
	srv := startFeedServer(t, feed)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/items"
	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	if err == nil {
		t.Fatal("Dial() from a foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestItemFeed_AllowsFrontOrigin(t *testing.T) {
	feed := NewItemFeed("http://localhost:3000", zap.NewNop())
	srv := startFeedServer(t, feed)

	conn := dialFeed(t, srv, http.Header{"Origin": []string{"http://localhost:3000"}})

	if msg := readFeedMessage(t, conn); msg.Type != model.FeedMessageTypeHello {
		t.Errorf("type = %s, want hello", msg.Type)
	}
}

func TestItemFeed_ClientDisconnectUnsubscribes(t *testing.T) {
	feed := NewItemFeed("", zap.NewNop())
	srv := startFeedServer(t, feed)
	conn := dialFeed(t, srv, nil)
	readFeedMessage(t, conn)
	waitForSubscribers(t, feed, 1)

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()

	waitForSubscribers(t, feed, 0)
}

func TestItemFeed_CloseAllConnections(t *testing.T) {
	// Arrange
	feed := NewItemFeed("", zap.NewNop())
	srv := startFeedServer(t, feed)
	conn := dialFeed(t, srv, nil)
	readFeedMessage(t, conn)
	waitForSubscribers(t, feed, 1)

	// Act
	feed.CloseAllConnections()

	// Assert
	if feed.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", feed.Subscribers())
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want normal closure", err)
	}
}

func TestItemFeed_PublishWithoutSubscribers(t *testing.T) {
	feed := NewItemFeed("", zap.NewNop())

	feed.Publish(model.FeedMessage{Type: model.FeedMessageTypeItemCreated})

	if feed.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", feed.Subscribers())
	}
}
