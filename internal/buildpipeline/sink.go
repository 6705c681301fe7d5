package buildpipeline

import (
	"go.uber.org/zap"
)

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// LogSink writes events to a zap logger; errors at warn level, the rest at debug.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) OnEvent(evt Event) {
	if s.Log == nil {
		return
	}
	fields := []zap.Field{zap.String("stage", string(evt.Stage)), zap.String("status", string(evt.Status))}
	if evt.Detail != "" {
		fields = append(fields, zap.String("detail", evt.Detail))
	}
	if evt.Elapsed > 0 {
		fields = append(fields, zap.Duration("elapsed", evt.Elapsed))
	}
	if evt.Err != nil {
		s.Log.Warn("stage failed", append(fields, zap.Error(evt.Err))...)
		return
	}
	s.Log.Debug("stage", fields...)
}

// MultiSink fans events out to several sinks.
type MultiSink []ProgressSink

func (m MultiSink) OnEvent(evt Event) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(evt)
		}
	}
}

func emit(sink ProgressSink, stage Stage, status Status, detail string, err error) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Detail: detail, Err: err})
}

func emitQueued(sink ProgressSink) {
	for _, st := range Stages() {
		emit(sink, st, StatusQueued, "", nil)
	}
}
