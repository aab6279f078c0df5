package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
)

// wantsEventStream 客户端是否请求 SSE
func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// eventStream 把流水线进度事件写成 SSE
// 观察者由编排器串行调用，处理器在运行结束前不会并发写响应
type eventStream struct {
	c *gin.Context
}

func newEventStream(c *gin.Context) *eventStream {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(200)
	return &eventStream{c: c}
}

func (s *eventStream) send(name string, data any) {
	if s.c.Request.Context().Err() != nil {
		return
	}
	s.c.SSEvent(name, data)
	s.c.Writer.Flush()
}

// observe 转换流水线事件
func (s *eventStream) observe(ev generation.Event) {
	switch ev.Kind {
	case generation.EventState:
		payload := gin.H{
			"runId":     ev.RunID,
			"state":     ev.State,
			"partIndex": ev.PartIndex,
		}
		if ev.PartName != "" {
			payload["partName"] = ev.PartName
		}
		if ev.Total > 0 {
			payload["total"] = ev.Total
		}
		if ev.Err != nil {
			payload["message"] = publicMessage(ev.Err)
		}
		s.send("state", payload)
	case generation.EventPlan:
		s.send("plan", gin.H{"runId": ev.RunID, "parts": ev.Plan})
	case generation.EventResult:
		s.send("result", gin.H{"runId": ev.RunID, "partIndex": ev.PartIndex, "result": ev.Result})
	}
}

// done 结束事件
func (s *eventStream) done(data any) {
	s.send("done", data)
}

// fail 失败事件
func (s *eventStream) fail(err error) {
	s.send("error", gin.H{"message": publicMessage(err), "failure": partFailure(err)})
}
