package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapsesDegenerateCases(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Error("expected NoopHandler when every handler is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabledIsUnion(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected fanout enabled when any handler accepts the level")
	}

	strict := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	if strict.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected fanout disabled when no handler accepts the level")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)

	logger.Debug("solver probe detail")

	if infoBuf.Len() != 0 {
		t.Error("info handler should not receive debug records")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug handler should receive debug records")
	}
}

func TestFanoutHandlerDuplicatesRecordsAndAttrs(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, nil),
		slog.NewJSONHandler(&buf2, nil),
	)
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "daemon")}))

	logger.Info("session promoted", slog.Int("session_id", 4))

	for name, buf := range map[string]*bytes.Buffer{"first": &buf1, "second": &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"session promoted"`)) {
			t.Errorf("expected record in %s output", name)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"component"`)) {
			t.Errorf("expected shared attr in %s output", name)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"session_id"`)) {
			t.Errorf("expected record attr in %s output", name)
		}
	}
}

func TestTeeLoggerIncludesBase(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))

	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("teed message")

	if baseBuf.Len() == 0 {
		t.Error("expected output in base buffer")
	}
	if teeBuf.Len() == 0 {
		t.Error("expected output in tee buffer")
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var teeBuf bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("no base")

	if teeBuf.Len() == 0 {
		t.Error("expected output in tee buffer")
	}
}
