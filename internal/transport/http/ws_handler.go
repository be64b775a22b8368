package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/andyyulianto77/kuis3/internal/app"
	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type introPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type checkPayload struct {
	Answer string `json:"answer"`
}

type checkResult struct {
	Correct    bool   `json:"correct"`
	Message    string `json:"message"`
	Score      int    `json:"score"`
	Percentage int    `json:"percentage"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// session for the requested page. Question content comes from the
// `questions` attribute (or its `kuis` alias) or the question-set store.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := query.Get("page")
	if page == "" {
		http.Error(w, "missing page", http.StatusBadRequest)
		return
	}
	autoload := query.Get("autoload") != "false" && query.Get("autoload") != "0"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Attach(r.Context(), page, app.AttachOptions{
		RawQuestions: query.Get("questions"),
		RawAlias:     query.Get("kuis"),
		Autoload:     autoload,
	})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Detach(page)
	slug := session.Slug()

	events, cancel := h.service.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Slug != slug {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Kind), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: session.View()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "intro":
			var payload introPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid intro payload"}}
				continue
			}
			view, err := h.service.SubmitIntro(r.Context(), page, domain.Identity{
				Name:    payload.Name,
				Phone:   payload.Phone,
				Address: payload.Address,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: view}
		case "check":
			var payload checkPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid check payload"}}
				continue
			}
			out, err := h.service.CheckAnswer(r.Context(), page, payload.Answer)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "checkResult", Payload: checkResult{
				Correct:    out.Correct,
				Message:    out.Message,
				Score:      out.Result.Score,
				Percentage: out.Result.Percentage,
			}}
			if out.Celebrate {
				send <- outboundMessage[any]{Type: "confetti", Payload: struct{}{}}
			}
			send <- outboundMessage[any]{Type: "state", Payload: h.viewOf(page)}
		case "next":
			if _, err := h.service.Advance(r.Context(), page); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: h.viewOf(page)}
		case "prev":
			view, err := h.service.Retreat(page)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: view}
		case "restart":
			view, err := h.service.Restart(r.Context(), page)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "state", Payload: view}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) viewOf(page string) app.View {
	view, err := h.service.ViewOf(page)
	if err != nil {
		return app.View{}
	}
	return view
}
