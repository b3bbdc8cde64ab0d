package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"astropitography/internal/config"
)

const userAgent = "AstroPitography/0.1.0"

// Event enumerates the workflow milestones that can be pushed to ntfy.
type Event string

const (
	EventDaemonStarted    Event = "daemon_started"
	EventCameraDetected   Event = "camera_detected"
	EventCaptureStarted   Event = "capture_started"
	EventCaptureCompleted Event = "capture_completed"
	EventSolveCompleted   Event = "solve_completed"
	EventSessionCompleted Event = "session_completed"
	EventReviewRequired   Event = "review_required"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries the per-event template values.
type Payload map[string]string

func (p Payload) value(key string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

// Publish formats and sends an event. Suppressed categories and unknown
// events return nil without touching the network.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := compose(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventCameraDetected, EventCaptureStarted, EventCaptureCompleted:
		return n.toggles.Capture
	case EventSolveCompleted:
		return n.toggles.Solve
	case EventSessionCompleted:
		return n.toggles.Organization
	case EventReviewRequired:
		return n.toggles.Review
	case EventError:
		return n.toggles.Errors
	default:
		return true
	}
}

func compose(event Event, payload Payload) (message, bool) {
	name := payload.value("name")
	if name == "" {
		name = "session"
	}
	switch event {
	case EventDaemonStarted:
		return message{
			title: "AstroPitography - Daemon Ready",
			body:  "🔭 Daemon started, watching for the camera",
			tags:  []string{"astropitography", "daemon", "ready"},
		}, true
	case EventCameraDetected:
		camera := payload.value("camera")
		if camera == "" {
			camera = "camera"
		}
		return message{
			title: "AstroPitography - Camera Detected",
			body:  fmt.Sprintf("📷 Camera detected: %s", camera),
			tags:  []string{"astropitography", "camera", "detected"},
		}, true
	case EventCaptureStarted:
		return message{
			title: "AstroPitography - Capture Started",
			body:  fmt.Sprintf("Started capture: %s", name),
			tags:  []string{"astropitography", "capture", "started"},
		}, true
	case EventCaptureCompleted:
		body := fmt.Sprintf("📷 Capture complete: %s", name)
		if frames := payload.value("frames"); frames != "" {
			body = fmt.Sprintf("%s (%s frames)", body, frames)
		}
		return message{
			title: "AstroPitography - Capture Complete",
			body:  body,
			tags:  []string{"astropitography", "capture", "completed"},
		}, true
	case EventSolveCompleted:
		body := fmt.Sprintf("🔭 Plate solved: %s", name)
		if ra, dec := payload.value("ra"), payload.value("dec"); ra != "" && dec != "" {
			body = fmt.Sprintf("%s\nRA %s°, Dec %s°", body, ra, dec)
		}
		return message{
			title: "AstroPitography - Plate Solved",
			body:  body,
			tags:  []string{"astropitography", "solve", "completed"},
		}, true
	case EventSessionCompleted:
		body := fmt.Sprintf("✅ Filed in library: %s", name)
		if path := payload.value("path"); path != "" {
			body = fmt.Sprintf("%s\nPath: %s", body, path)
		}
		return message{
			title:    "AstroPitography - Session Complete",
			body:     body,
			tags:     []string{"astropitography", "session", "completed"},
			priority: "high",
		}, true
	case EventReviewRequired:
		body := fmt.Sprintf("Review needed: %s", name)
		if reason := payload.value("reason"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title: "AstroPitography - Review Needed",
			body:  body,
			tags:  []string{"astropitography", "review", "needed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.value("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := payload.value("error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "AstroPitography - Error",
			body:     builder.String(),
			tags:     []string{"astropitography", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "AstroPitography - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"astropitography", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
