package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/wirasena/kommobridge/internal/config"
	"github.com/wirasena/kommobridge/internal/domain"
	"github.com/wirasena/kommobridge/internal/kommo"
	"github.com/wirasena/kommobridge/internal/logging"
	"github.com/wirasena/kommobridge/internal/store"
)

// LeadHandlerConfig wires the lead handler to its tenant-specific CRM ids.
type LeadHandlerConfig struct {
	LangSelectBotID int64 // language picker launched for brand-new conversations
	ReplyBotID      int64 // delivers the message custom field after a command
	MessageFieldID  int64 // textarea custom field outbound texts are written to
	SessionTTLHours int   // expiry for sessions bootstrapped here
}

// LeadHandler turns raw lead events into audit records and keeps the session
// state machine moving: it bootstraps brand-new conversations with the
// language-select bot, captures language selections, and relays recognized
// command phrases into the CRM.
type LeadHandler struct {
	cfg      LeadHandlerConfig
	sessions SessionStore
	leads    LeadStore
	crm      CRM
	source   SourceDeleter
	log      *logging.Logger
}

// NewLeadHandler creates the lead handler. Zero config values fall back to
// the production defaults.
func NewLeadHandler(
	cfg LeadHandlerConfig,
	sessions SessionStore,
	leads LeadStore,
	crm CRM,
	source SourceDeleter,
	log *logging.Logger,
) *LeadHandler {
	if cfg.LangSelectBotID == 0 {
		cfg.LangSelectBotID = config.DefaultLangSelectBotID
	}
	if cfg.MessageFieldID == 0 {
		cfg.MessageFieldID = config.DefaultMessageFieldID
	}
	if cfg.SessionTTLHours == 0 {
		cfg.SessionTTLHours = 24
	}
	return &LeadHandler{
		cfg:      cfg,
		sessions: sessions,
		leads:    leads,
		crm:      crm,
		source:   source,
		log:      log.Sub("handler.lead"),
	}
}

// Name implements Handler.
func (h *LeadHandler) Name() string { return "incoming-lead" }

// CanHandle implements Handler. Any non-empty structured payload qualifies;
// the processing steps no-op gracefully when fields are missing.
func (h *LeadHandler) CanHandle(path string, data any) bool {
	payload, ok := data.(map[string]any)
	return ok && len(payload) > 0
}

// Handle implements Handler. The lead is always persisted as an audit record,
// whatever else fails; the source payload is deleted only after a successful
// persist so a crash redelivers instead of losing the event. This is the one
// handler whose errors propagate to the manager.
func (h *LeadHandler) Handle(ctx context.Context, path string, data any) error {
	payload, ok := data.(map[string]any)
	if !ok {
		h.log.Debug().Str("path", path).Msg("ignoring unstructured payload")
		return nil
	}

	h.log.Info().Str("path", path).Msg("processing incoming lead")

	lead := domain.NewLead(path, payload)
	lead.Metadata["handler"] = h.Name()

	entityID, hasEntity := h.entityID(payload)
	message := stringValue(payload["messages"])

	var sess *domain.Session
	if hasEntity {
		latest, err := h.sessions.LatestByEntity(entityID)
		switch {
		case err != nil:
			// Skip the session-dependent steps; the lead is still recorded.
			h.log.Warn().Err(err).Int64("entityId", entityID).Msg("session lookup failed")
		case latest != nil:
			sess = latest
			h.log.Info().
				Int64("entityId", entityID).
				Str("sessionId", sess.ID).
				Str("language", string(sess.Language)).
				Msg("found existing session")
			lead.Metadata["session_id"] = sess.ID
			lead.Metadata["session_language"] = string(sess.Language)
		default:
			h.bootstrap(ctx, entityID, lead)
		}
	}

	if sess != nil && message != "" {
		h.routeMessage(ctx, sess, entityID, message, lead)
	}

	lead.MarkProcessed()
	if err := h.leads.Save(lead); err != nil {
		h.log.Error().Err(err).Str("path", path).Str("leadId", lead.ID).Msg("failed to persist lead")
		return fmt.Errorf("persisting lead %s: %w", lead.ID, err)
	}

	if err := h.source.Delete(ctx, path); err != nil {
		h.log.Warn().Err(err).Str("leadId", lead.ID).Str("path", path).
			Msg("lead persisted but source cleanup failed")
	} else {
		h.log.Info().Str("leadId", lead.ID).Str("path", path).
			Msg("lead processed and source cleaned up")
	}
	return nil
}

// entityID pulls the entity id out of the payload. A malformed value is
// logged and treated as absent so the lead is still recorded.
func (h *LeadHandler) entityID(payload map[string]any) (int64, bool) {
	raw, present := payload["entity_id"]
	if !present || raw == nil {
		return 0, false
	}
	if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
		return 0, false
	}
	id, ok := coerceEntityID(raw)
	if !ok {
		h.log.Warn().Str("entityId", fmt.Sprint(raw)).Msg("invalid entity_id, skipping session lookup")
		return 0, false
	}
	if id == 0 {
		return 0, false
	}
	return id, true
}

// bootstrap starts a brand-new conversation: launch the language-select bot,
// then create a session with no language yet, parked on the main menu.
// Failures are recorded on the lead and never abort processing.
func (h *LeadHandler) bootstrap(ctx context.Context, entityID int64, lead *domain.Lead) {
	h.log.Debug().Int64("entityId", entityID).Msg("no active session, bootstrapping conversation")

	if err := h.crm.LaunchSalesbot(ctx, h.cfg.LangSelectBotID, entityID, kommo.EntityTypeLead); err != nil {
		h.log.Error().Err(err).
			Int64("entityId", entityID).
			Int64("botId", h.cfg.LangSelectBotID).
			Msg("failed to launch language-select bot")
		lead.Metadata["salesbot_launched"] = false
		lead.Metadata["salesbot_error"] = err.Error()
		return
	}
	h.log.Info().
		Int64("entityId", entityID).
		Int64("botId", h.cfg.LangSelectBotID).
		Msg("launched language-select bot")
	lead.Metadata["salesbot_launched"] = true
	lead.Metadata["salesbot_id"] = h.cfg.LangSelectBotID

	sess, err := h.sessions.Create(store.CreateSessionRequest{
		EntityID:       entityID,
		Command:        domain.CommandMainMenu,
		ExpiresInHours: h.cfg.SessionTTLHours,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("entityId", entityID).Msg("failed to create session")
		lead.Metadata["salesbot_launched"] = false
		lead.Metadata["salesbot_error"] = err.Error()
		return
	}
	h.log.Info().
		Int64("entityId", entityID).
		Str("sessionId", sess.ID).
		Str("leadId", lead.ID).
		Msg("created new session")
	lead.Metadata["new_session_created"] = true
	lead.Metadata["new_session_id"] = sess.ID
}

// routeMessage applies the button-menu protocol for an existing session:
// sessions without a language accept only a language selection; sessions with
// a language accept command phrases, which are pushed into the CRM and
// answered by the reply bot. Anything else is plain chatter and is only
// recorded on the lead.
func (h *LeadHandler) routeMessage(ctx context.Context, sess *domain.Session, entityID int64, message string, lead *domain.Lead) {
	if sess.Language == "" {
		lang, ok := domain.LanguageFromSelector(message)
		if !ok {
			h.log.Debug().Str("sessionId", sess.ID).Msg("message is not a language selection")
			return
		}
		if _, err := h.sessions.Update(sess.ID, store.SessionPatch{Language: &lang}); err != nil {
			h.log.Error().Err(err).
				Str("sessionId", sess.ID).
				Str("language", string(lang)).
				Msg("failed to persist detected language")
			return
		}
		h.log.Info().
			Int64("entityId", entityID).
			Str("sessionId", sess.ID).
			Str("language", string(lang)).
			Msg("language selected for session")
		lead.Metadata["detected_language"] = string(lang)
		return
	}

	cmd, ok := domain.CommandFromLabel(message)
	if !ok {
		h.log.Debug().Str("sessionId", sess.ID).Msg("message is not a recognized command")
		return
	}
	h.log.Info().
		Int64("entityId", entityID).
		Str("sessionId", sess.ID).
		Str("command", string(cmd)).
		Msg("recognized command message")

	fields := []kommo.CustomFieldUpdate{kommo.TextareaField(h.cfg.MessageFieldID, message)}
	if err := h.crm.UpdateLeadCustomFields(ctx, entityID, fields); err != nil {
		h.log.Error().Err(err).
			Int64("entityId", entityID).
			Str("sessionId", sess.ID).
			Msg("failed to update lead message field")
		return
	}
	h.log.Info().Int64("entityId", entityID).Str("command", string(cmd)).Msg("updated lead message field")

	if err := h.crm.LaunchSalesbot(ctx, h.cfg.ReplyBotID, entityID, kommo.EntityTypeLead); err != nil {
		h.log.Error().Err(err).
			Int64("entityId", entityID).
			Int64("botId", h.cfg.ReplyBotID).
			Msg("failed to launch reply bot")
		return
	}
	h.log.Info().Int64("entityId", entityID).Int64("botId", h.cfg.ReplyBotID).Msg("launched reply bot")
}
