package handler

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/wirasena/kommobridge/internal/catalog"
	"github.com/wirasena/kommobridge/internal/config"
	"github.com/wirasena/kommobridge/internal/domain"
	"github.com/wirasena/kommobridge/internal/kommo"
	"github.com/wirasena/kommobridge/internal/logging"
	"github.com/wirasena/kommobridge/internal/lovebali"
	"github.com/wirasena/kommobridge/internal/store"
)

// Conversation states carried in the payload's state field.
const (
	StateInitial          = "INITIAL"
	StateAwaitingPassport = "AWAITING_PASSPORT_NUMBER"
)

// messageKeys are the payload fields scanned for user message text, in
// precedence order.
var messageKeys = []string{"message", "messages", "text", "body"}

// passportRE validates a normalized passport number: 6 to 12 characters,
// uppercase letters and digits.
var passportRE = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// MessageHandlerConfig wires the message handler to its tenant-specific
// CRM ids.
type MessageHandlerConfig struct {
	ReplyBotID         int64 // delivers the message custom field to the chat
	MainMenuENBotID    int64 // main menu bot, English sessions
	MainMenuOtherBotID int64 // main menu bot, every other language
	MessageFieldID     int64 // textarea custom field outbound texts are written to
}

// MessageHandler drives the passport conversation: a state machine keyed by
// the payload's state field, with every outbound text localized by the
// entity's session language. Its errors are swallowed after logging; the
// user only ever sees catalog messages.
type MessageHandler struct {
	cfg      MessageHandlerConfig
	sessions SessionStore
	crm      CRM
	passport PassportRegistry
	source   SourceDeleter
	log      *logging.Logger
}

// NewMessageHandler creates the message handler. A zero MessageFieldID falls
// back to the production default.
func NewMessageHandler(
	cfg MessageHandlerConfig,
	sessions SessionStore,
	crm CRM,
	passport PassportRegistry,
	source SourceDeleter,
	log *logging.Logger,
) *MessageHandler {
	if cfg.MessageFieldID == 0 {
		cfg.MessageFieldID = config.DefaultMessageFieldID
	}
	return &MessageHandler{
		cfg:      cfg,
		sessions: sessions,
		crm:      crm,
		passport: passport,
		source:   source,
		log:      log.Sub("handler.message"),
	}
}

// Name implements Handler.
func (h *MessageHandler) Name() string { return "incoming-message" }

// CanHandle implements Handler: the payload must carry an entity_id and a
// displayable message. Coercing the entity id is deferred to Handle so a
// malformed id is logged rather than silently skipped.
func (h *MessageHandler) CanHandle(path string, data any) bool {
	payload, ok := data.(map[string]any)
	if !ok {
		return false
	}
	raw, present := payload["entity_id"]
	if !present || raw == nil {
		return false
	}
	if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}
	return extractMessage(payload) != ""
}

// Handle implements Handler. The triggering payload is deleted from the
// realtime store whatever the outcome; redelivering a consumed chat message
// would re-prompt the user.
func (h *MessageHandler) Handle(ctx context.Context, path string, data any) error {
	defer h.deleteSource(ctx, path)

	payload, ok := data.(map[string]any)
	if !ok {
		h.log.Debug().Str("path", path).Msg("ignoring unstructured payload")
		return nil
	}

	message := extractMessage(payload)
	if message == "" {
		h.log.Debug().Str("path", path).Msg("no message content detected")
		return nil
	}
	h.log.Info().Str("path", path).Str("message", message).Msg("incoming message received")

	entityID, ok := coerceEntityID(payload["entity_id"])
	if !ok {
		h.log.Warn().Str("path", path).Msg("incoming message missing valid entity_id")
		return nil
	}

	entityType := h.resolveEntityType(payload)
	sess := h.lookupSession(entityID)

	lang := domain.DefaultLanguage
	if sess != nil && sess.Language != "" {
		lang = sess.Language
	}

	state := StateInitial
	if s, isString := payload["state"].(string); isString && strings.TrimSpace(s) != "" {
		state = strings.TrimSpace(s)
	}

	switch state {
	case StateAwaitingPassport:
		h.checkPassport(ctx, entityID, entityType, sess, lang, message)
	default:
		// INITIAL and anything unrecognized: open the flow with the prompt.
		if state != StateInitial {
			h.log.Debug().Str("state", state).Msg("unrecognized state, treating as initial")
		}
		h.sendCatalog(ctx, entityID, entityType, catalog.PassportPrompt, lang)
	}
	return nil
}

// checkPassport validates and verifies a passport number reply, answers with
// the localized result, and on success advances the session to the main menu.
func (h *MessageHandler) checkPassport(ctx context.Context, entityID int64, entityType string, sess *domain.Session, lang domain.Language, message string) {
	number := normalizePassport(message)
	if !passportRE.MatchString(number) {
		h.log.Info().Int64("entityId", entityID).Msg("passport number failed validation")
		h.sendCatalog(ctx, entityID, entityType, catalog.PassportInvalid, lang)
		return
	}

	result, err := h.passport.ScanPassport(ctx, number)
	if err != nil {
		if lovebali.IsNotFound(err) {
			h.log.Info().Int64("entityId", entityID).Msg("passport not registered")
			h.sendCatalog(ctx, entityID, entityType, catalog.PassportNotFound, lang)
			return
		}
		h.log.Error().Err(err).Int64("entityId", entityID).Msg("passport lookup failed")
		h.sendCatalog(ctx, entityID, entityType, catalog.PassportError, lang)
		return
	}

	h.sendMessage(ctx, entityID, entityType, h.foundMessage(result, lang))
	h.log.Info().Int64("entityId", entityID).Msg("passport verified")

	if sess == nil {
		return
	}
	cmd := domain.CommandMainMenu
	if _, err := h.sessions.Update(sess.ID, store.SessionPatch{Command: &cmd}); err != nil {
		h.log.Error().Err(err).Str("sessionId", sess.ID).Msg("failed to advance session to main menu")
		return
	}
	h.log.Info().Str("sessionId", sess.ID).Msg("session advanced to main menu")

	botID := h.cfg.MainMenuOtherBotID
	if lang == domain.LanguageEnglish {
		botID = h.cfg.MainMenuENBotID
	}
	if err := h.crm.LaunchSalesbot(ctx, botID, entityID, entityType); err != nil {
		h.log.Error().Err(err).Int64("entityId", entityID).Int64("botId", botID).
			Msg("failed to launch main-menu bot")
		return
	}
	h.log.Info().Int64("entityId", entityID).Int64("botId", botID).Msg("launched main-menu bot")
}

// foundMessage renders the localized passport-found template. Missing scan
// fields default to "-"; if substitution fails the raw template is sent
// rather than nothing.
func (h *MessageHandler) foundMessage(result *lovebali.ScanResult, lang domain.Language) string {
	template, err := catalog.Message(catalog.PassportFound, lang)
	if err != nil {
		h.log.Error().Err(err).Msg("passport-found template missing")
		return ""
	}

	vars := map[string]string{
		"code_voucher": "-",
		"guest_name":   "-",
		"arrival_date": "-",
		"expired_date": "-",
	}
	if result != nil {
		setVar(vars, "code_voucher", result.Data.CodeVoucher)
		setVar(vars, "guest_name", result.Data.GuestName)
		setVar(vars, "arrival_date", result.Data.ArrivalDate)
		setVar(vars, "expired_date", result.Data.ExpiredDate)
	}

	text, err := catalog.Render(template, vars)
	if err != nil {
		h.log.Warn().Err(err).Msg("template substitution failed, sending raw template")
		return template
	}
	return text
}

// sendCatalog localizes a catalog message and delivers it.
func (h *MessageHandler) sendCatalog(ctx context.Context, entityID int64, entityType string, key catalog.Key, lang domain.Language) {
	text, err := catalog.Message(key, lang)
	if err != nil {
		h.log.Error().Err(err).Str("key", string(key)).Msg("catalog message missing")
		return
	}
	h.sendMessage(ctx, entityID, entityType, text)
}

// sendMessage delivers one outbound text: write the CRM message custom field,
// then launch the reply bot that pushes it into the chat. Both steps are
// attempted regardless of each other's outcome.
func (h *MessageHandler) sendMessage(ctx context.Context, entityID int64, entityType, text string) {
	if text == "" {
		return
	}

	fields := []kommo.CustomFieldUpdate{kommo.TextareaField(h.cfg.MessageFieldID, text)}
	if err := h.crm.UpdateLeadCustomFields(ctx, entityID, fields); err != nil {
		h.log.Error().Err(err).Int64("entityId", entityID).Msg("failed to update message field")
	} else {
		h.log.Info().Int64("entityId", entityID).Msg("updated message field")
	}

	if err := h.crm.LaunchSalesbot(ctx, h.cfg.ReplyBotID, entityID, entityType); err != nil {
		h.log.Error().Err(err).Int64("entityId", entityID).Int64("botId", h.cfg.ReplyBotID).
			Msg("failed to launch reply bot")
	} else {
		h.log.Info().Int64("entityId", entityID).Int64("botId", h.cfg.ReplyBotID).Msg("launched reply bot")
	}
}

// lookupSession fetches the latest active session for the entity. Lookup
// errors degrade to "no session".
func (h *MessageHandler) lookupSession(entityID int64) *domain.Session {
	sess, err := h.sessions.LatestByEntity(entityID)
	if err != nil {
		h.log.Error().Err(err).Int64("entityId", entityID).Msg("session lookup failed")
		return nil
	}
	return sess
}

// resolveEntityType maps the payload's entity_type to a salesbot API code,
// accepting raw codes, numbers, and entity names. Unresolvable values fall
// back to the lead code.
func (h *MessageHandler) resolveEntityType(payload map[string]any) string {
	raw := payload["entity_type"]

	var name string
	switch v := raw.(type) {
	case string:
		name = strings.TrimSpace(v)
	case float64:
		name = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		name = strconv.Itoa(v)
	case int64:
		name = strconv.FormatInt(v, 10)
	}

	switch name {
	case "":
		return kommo.EntityTypeLead
	case kommo.EntityTypeContact, kommo.EntityTypeLead:
		return name
	}
	code, err := kommo.EntityTypeCode(name)
	if err != nil {
		h.log.Debug().Str("entityType", name).Msg("unresolvable entity_type, using lead")
		return kommo.EntityTypeLead
	}
	return code
}

// deleteSource clears the consumed payload off the realtime store.
func (h *MessageHandler) deleteSource(ctx context.Context, path string) {
	if err := h.source.Delete(ctx, path); err != nil {
		h.log.Warn().Err(err).Str("path", path).Msg("failed to delete consumed payload")
	}
}

// extractMessage pulls the first non-blank message string from the payload,
// scanning the known message keys in order.
func extractMessage(payload map[string]any) string {
	for _, key := range messageKeys {
		if text := stringValue(payload[key]); text != "" {
			return text
		}
	}
	return ""
}

// normalizePassport uppercases a passport reply and strips the separators
// users habitually type. Normalization is idempotent.
func normalizePassport(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

func setVar(vars map[string]string, key, value string) {
	if strings.TrimSpace(value) != "" {
		vars[key] = value
	}
}
