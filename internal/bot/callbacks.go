package bot

import (
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/kwitt-bot/kwitt/internal/bot/keyboard"
	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/internal/domain"
	errors "github.com/kwitt-bot/kwitt/internal/errors"
	"github.com/kwitt-bot/kwitt/pkg/metrics"
)

// Callback answers the accept/reject buttons on money request notifications.
// The payload is "<verb>:<id>"; the id may itself contain separators.
func (h *Handlers) Callback(c *dispatch.Context) (dispatch.Outcome, error) {
	cb := c.Update().Callback
	if cb == nil {
		return dispatch.Continue, nil
	}

	verb, requestID, err := keyboard.DecodeCallback(cb.Data)
	if err != nil {
		h.log.Warn("undecodable callback payload",
			slog.String("data", cb.Data), slog.Any("error", err))
		return dispatch.End, h.replier.Respond(cb, "Sorry, I can't process that.")
	}

	actor := c.Actor()
	if actor == nil {
		return dispatch.End, h.replier.Respond(cb, "I don't know you yet. Type /start first!")
	}

	accept := verb == keyboard.VerbAccept

	result, err := h.service.RespondRequest(c.Ctx(), actor, requestID, accept)
	if err != nil {
		// Business rejections are answered on the callback itself; everything
		// else goes through the failure pipeline.
		var appErr *errors.AppError
		if stdErrors.As(err, &appErr) && appErr.UserMessage != "" && !appErr.Retryable {
			metrics.RecordCommand("request_response", "rejected")
			return dispatch.End, h.replier.Respond(cb, appErr.UserMessage)
		}
		return dispatch.End, err
	}

	ack := "Rejected."
	event := "rejected"
	if result.Accepted {
		ack = "Sent!"
		event = "accepted"
	}
	if err := h.replier.Respond(cb, ack); err != nil {
		h.log.Warn("callback ack failed", slog.Any("error", err))
	}

	metrics.RecordCommand("request_response", "ok")

	h.log.Info("request answered",
		slog.String("request_id", result.Request.ID),
		slog.String("event", event),
		slog.Int64("responder_id", actor.ID),
	)

	verbText := "rejected"
	if result.Accepted {
		verbText = "accepted"
	}

	return dispatch.End, c.ReplyTo(result.Issuer.ChatID, fmt.Sprintf(
		"%s %s your request for %s.",
		actor.Mention(), verbText, domain.FormatAmount(result.Request.Amount)))
}
