package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/records"
	"github.com/wanderlog/wanderbot/internal/scope"
	"github.com/wanderlog/wanderbot/internal/session"
	textutil "github.com/wanderlog/wanderbot/internal/text"
	"github.com/wanderlog/wanderbot/internal/views"
)

// NewMessageHandler returns the default update handler. It routes document
// uploads to extraction, drives whatever flow the session is in, and answers
// free-form questions when idle.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	if update.Message.Document != nil || len(update.Message.Photo) > 0 {
		documentHandler{h.deps}.Handle(ctx, b, update)
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}

	log := h.deps.Logger.With("handler", "message")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}

	h.deps.Sessions.Lock(sc.ChatID)
	defer h.deps.Sessions.Unlock(sc.ChatID)

	sess, err := h.deps.Sessions.Get(ctx, sc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load session", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	data := h.deps.Sessions.FlowData(sess)

	switch session.State(sess.State) {
	case session.StateAwaitingTripName:
		h.handleTripName(ctx, b, log, sc, sess, text)
	case session.StateAwaitingLocation:
		h.handleLocation(ctx, b, log, sc, sess, data, text)
	case session.StateAwaitingParticipants:
		h.handleParticipants(ctx, b, log, sc, update, sess, data, text)
	case session.StateAwaitingSplitType:
		h.handleSplitType(ctx, b, log, sc, sess, data, text)
	case session.StateAwaitingConfirmation:
		h.handleSplitConfirm(ctx, b, log, sc, sess, data, text)
	case session.StateAwaitingPlaceCategory:
		h.handlePlaceCategory(ctx, b, log, sc, sess, data, text)
	case session.StateAwaitingItineraryOK:
		h.handleItineraryConfirm(ctx, b, log, sc, sess, data, text)
	default:
		h.handleQuestion(ctx, b, log, sc, sess, text)
	}
}

func (h messageHandler) handleTripName(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, text string) {
	err := h.deps.Sessions.Transition(ctx, sess, session.StateAwaitingLocation,
		&session.FlowData{Flow: session.FlowTripCreate, TripName: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to advance trip creation", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	reply(ctx, b, log, sc.ChatID, "Where is \""+text+"\" headed? (or say \"skip\")")
}

func (h messageHandler) handleLocation(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, data *session.FlowData, text string) {
	if !strings.EqualFold(text, "skip") {
		data.Location = text
	}
	if err := h.deps.Sessions.Transition(ctx, sess, session.StateAwaitingParticipants, data); err != nil {
		log.ErrorContext(ctx, "Failed to advance trip creation", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	reply(ctx, b, log, sc.ChatID, "Who's going? Comma-separated names, or say \"just me\".")
}

func (h messageHandler) handleParticipants(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, update *models.Update, sess *database.Session, data *session.FlowData, text string) {
	var names []string
	if strings.EqualFold(text, "just me") {
		names = []string{senderName(update)}
	} else {
		names = splitNames(text)
	}
	if len(names) == 0 {
		reply(ctx, b, log, sc.ChatID, "I need at least one name. Comma-separated, or say \"just me\".")
		return
	}

	// The trip insert and the flow completion commit together.
	sess.State = string(session.StateIdle)
	sess.Context = "{}"

	t, err := h.deps.Trips.Create(ctx, sc, sess, data.TripName, data.Location, names)
	if err != nil {
		var dupErr *errs.DuplicateActiveTripError
		if errors.As(err, &dupErr) {
			// The idle state set above was never persisted, so Cancel would
			// see an idle session and leave the stored row mid-flow.
			if resetErr := h.deps.Sessions.Transition(ctx, sess, session.StateIdle, nil); resetErr != nil {
				log.ErrorContext(ctx, "Failed to reset session after rejected create", "error", resetErr)
			}
			reply(ctx, b, log, sc.ChatID, dupErr.Error())
			return
		}
		log.ErrorContext(ctx, "Failed to create trip", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	msg := fmt.Sprintf("\"%s\" is ready", t.Name)
	if t.Location != "" {
		msg += " for " + t.Location
	}
	msg += " with " + strings.Join(t.Participants, ", ") + ". Send me tickets and receipts as you go!"
	reply(ctx, b, log, sc.ChatID, msg)
}

// computeSplit turns the user's split phrasing into per-participant amounts.
// Supported forms: "even", "even between A, B", and explicit "A=12.50, B=30".
func (h messageHandler) computeSplit(input, payer string, t *database.Trip, total decimal.Decimal) (database.StringList, database.DecimalMap, error) {
	lower := strings.ToLower(strings.TrimSpace(input))
	precision := h.deps.Config.Trips.CurrencyPrecision

	switch {
	case lower == "even":
		names := database.StringList(t.Participants)
		if !t.HasParticipant(payer) {
			names = append(names, payer)
		}
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("no participants on the trip yet")
		}
		amounts, err := records.EvenSplit(total, names, precision)
		return names, amounts, err

	case strings.HasPrefix(lower, "even between "):
		names := database.StringList(splitNames(strings.TrimSpace(input[len("even between "):])))
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("no names given after \"even between\"")
		}
		amounts, err := records.EvenSplit(total, names, precision)
		return names, amounts, err

	case strings.Contains(input, "="):
		var names database.StringList
		amounts := database.DecimalMap{}
		for _, pair := range strings.Split(input, ",") {
			name, amountStr, found := strings.Cut(pair, "=")
			if !found {
				return nil, nil, fmt.Errorf("could not read %q as name=amount", strings.TrimSpace(pair))
			}
			name = strings.TrimSpace(name)
			amount, err := decimal.NewFromString(strings.TrimSpace(amountStr))
			if err != nil {
				return nil, nil, fmt.Errorf("could not read the amount for %s", name)
			}
			names = append(names, name)
			amounts[name] = amount
		}
		adjusted, err := records.ValidateSplit(total, names, amounts, precision)
		if err != nil {
			return nil, nil, err
		}
		return names, adjusted, nil
	}

	return nil, nil, fmt.Errorf("say \"even\", \"even between Alice, Bob\", \"Alice=12.50, Bob=30\", or \"skip\"")
}

func (h messageHandler) handleSplitType(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, data *session.FlowData, text string) {
	if strings.EqualFold(text, "skip") || strings.EqualFold(text, "no") {
		if err := h.deps.Sessions.Transition(ctx, sess, session.StateIdle, nil); err != nil {
			log.ErrorContext(ctx, "Failed to end split flow", "error", err)
		}
		reply(ctx, b, log, sc.ChatID, "Okay, left unsplit. You can split it later from /balance.")
		return
	}

	expense, t, ok := h.loadSplitTargets(ctx, b, log, sc, sess, data)
	if !ok {
		return
	}

	names, amounts, err := h.computeSplit(text, data.PaidBy, t, expense.Total)
	if err != nil {
		reply(ctx, b, log, sc.ChatID, "I couldn't work that split out: "+err.Error())
		return
	}

	data.SplitInput = text
	if err := h.deps.Sessions.Transition(ctx, sess, session.StateAwaitingConfirmation, data); err != nil {
		log.ErrorContext(ctx, "Failed to advance split flow", "error", err)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s paid %s %s. Shares:\n", data.PaidBy, expense.Total.StringFixed(2), expense.Currency))
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", name, amounts[name].StringFixed(2)))
	}
	sb.WriteString("Confirm? (yes/no)")
	reply(ctx, b, log, sc.ChatID, sb.String())
}

func (h messageHandler) handleSplitConfirm(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, data *session.FlowData, text string) {
	switch {
	case strings.EqualFold(text, "no"):
		if err := h.deps.Sessions.Transition(ctx, sess, session.StateAwaitingSplitType, &session.FlowData{
			Flow: session.FlowExpenseSplit, ExpenseID: data.ExpenseID, PaidBy: data.PaidBy,
		}); err != nil {
			log.ErrorContext(ctx, "Failed to rewind split flow", "error", err)
			reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
			return
		}
		reply(ctx, b, log, sc.ChatID, "Okay, how should it be split instead?")
		return
	case !strings.EqualFold(text, "yes"):
		reply(ctx, b, log, sc.ChatID, "Please answer yes or no.")
		return
	}

	expense, t, ok := h.loadSplitTargets(ctx, b, log, sc, sess, data)
	if !ok {
		return
	}

	names, amounts, err := h.computeSplit(data.SplitInput, data.PaidBy, t, expense.Total)
	if err != nil {
		log.ErrorContext(ctx, "Stored split input no longer parses", "error", err, "input", data.SplitInput)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	roster := t.Participants
	for _, name := range append(append(database.StringList{}, names...), data.PaidBy) {
		if !t.HasParticipant(name) {
			roster = append(roster, name)
			t.Participants = roster
		}
	}

	sess.State = string(session.StateIdle)
	sess.Context = "{}"

	err = h.deps.Store.ApplyExpenseSplit(ctx, expense.ID, data.PaidBy, names, amounts, roster, sess)
	if err != nil {
		log.ErrorContext(ctx, "Failed to apply split", "error", err, "expense_id", expense.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	reply(ctx, b, log, sc.ChatID, "Split recorded. /balance shows where everyone stands.")
}

// loadSplitTargets fetches the expense and trip a split flow refers to,
// resetting the flow when either has since been deleted.
func (h messageHandler) loadSplitTargets(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, data *session.FlowData) (*database.Expense, *database.Trip, bool) {
	expense, err := h.deps.Store.GetExpense(ctx, data.ExpenseID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load expense for split", "error", err, "expense_id", data.ExpenseID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return nil, nil, false
	}
	if expense == nil {
		if _, cancelErr := h.deps.Sessions.Cancel(ctx, sess); cancelErr != nil {
			log.ErrorContext(ctx, "Failed to reset dangling split flow", "error", cancelErr)
		}
		reply(ctx, b, log, sc.ChatID, "That expense is gone, so there's nothing to split.")
		return nil, nil, false
	}

	t, err := h.deps.Store.GetTrip(ctx, expense.TripID)
	if err != nil || t == nil {
		log.ErrorContext(ctx, "Failed to load trip for split", "error", err, "trip_id", expense.TripID)
		if _, cancelErr := h.deps.Sessions.Cancel(ctx, sess); cancelErr != nil {
			log.ErrorContext(ctx, "Failed to reset dangling split flow", "error", cancelErr)
		}
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return nil, nil, false
	}
	return expense, t, true
}

func (h messageHandler) handlePlaceCategory(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, data *session.FlowData, text string) {
	t, err := h.deps.Trips.Resolve(ctx, sc, sess)
	if err != nil || t == nil {
		log.ErrorContext(ctx, "Failed to resolve trip for place", "error", err, "scope", sc.String())
		if _, cancelErr := h.deps.Sessions.Cancel(ctx, sess); cancelErr != nil {
			log.ErrorContext(ctx, "Failed to reset place flow", "error", cancelErr)
		}
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NoActiveTrip)
		return
	}

	candidate := &records.PlaceCandidate{
		Name:       data.PlaceName,
		Category:   strings.ToLower(text),
		ExternalID: data.PlaceExternalID,
	}
	place, merged, err := h.deps.Attacher.AttachPlace(ctx, t.ID, candidate)
	if err != nil {
		log.ErrorContext(ctx, "Failed to save place", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	if err := h.deps.Sessions.Transition(ctx, sess, session.StateIdle, nil); err != nil {
		log.ErrorContext(ctx, "Failed to end place flow", "error", err)
	}

	if merged {
		reply(ctx, b, log, sc.ChatID, fmt.Sprintf("Updated \"%s\" on your places list.", place.Name))
	} else {
		reply(ctx, b, log, sc.ChatID, fmt.Sprintf("Saved \"%s\" (%s). /places shows the list.", place.Name, place.Category))
	}
}

func (h messageHandler) handleItineraryConfirm(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, data *session.FlowData, text string) {
	switch {
	case strings.EqualFold(text, "no"):
		if err := h.deps.Sessions.Transition(ctx, sess, session.StateIdle, nil); err != nil {
			log.ErrorContext(ctx, "Failed to end itinerary flow", "error", err)
		}
		reply(ctx, b, log, sc.ChatID, "Discarded. Send another itinerary any time.")
		return
	case !strings.EqualFold(text, "yes"):
		reply(ctx, b, log, sc.ChatID, "Please answer yes or no.")
		return
	}

	t, err := h.deps.Trips.Resolve(ctx, sc, sess)
	if err != nil || t == nil {
		log.ErrorContext(ctx, "Failed to resolve trip for itinerary", "error", err, "scope", sc.String())
		if _, cancelErr := h.deps.Sessions.Cancel(ctx, sess); cancelErr != nil {
			log.ErrorContext(ctx, "Failed to reset itinerary flow", "error", cancelErr)
		}
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NoActiveTrip)
		return
	}

	candidate := &records.ItineraryCandidate{
		IngestID: data.IngestID,
		Source:   database.ItinerarySourceDetected,
	}
	for _, entry := range data.PendingEntries {
		candidate.Entries = append(candidate.Entries, records.ItineraryEntryCandidate{
			Date:     entry.Date,
			Time:     entry.Time,
			Title:    entry.Title,
			Category: entry.Category,
		})
	}

	items, err := h.deps.Attacher.AttachItinerary(ctx, t.ID, candidate)
	if err != nil {
		log.ErrorContext(ctx, "Failed to attach itinerary", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	// A trip without dates adopts the itinerary's first day as its start,
	// which makes day numbering calendar-relative.
	var start time.Time
	for _, entry := range candidate.Entries {
		if start.IsZero() || entry.Date.Before(start) {
			start = entry.Date
		}
	}
	if err := h.deps.Trips.EnsureStartDate(ctx, t, start); err != nil {
		log.ErrorContext(ctx, "Failed to set trip start date", "error", err, "trip_id", t.ID)
	}

	if err := h.deps.Sessions.Transition(ctx, sess, session.StateIdle, nil); err != nil {
		log.ErrorContext(ctx, "Failed to end itinerary flow", "error", err)
	}

	reply(ctx, b, log, sc.ChatID, fmt.Sprintf("Added %d entries to the itinerary. /itinerary shows the plan.", len(items)))
}

// handleQuestion answers free-form questions over the active trip's data.
// Group chats stay quiet for plain text; flows and commands still work there.
func (h messageHandler) handleQuestion(ctx context.Context, b *bot.Bot, log *slog.Logger, sc scope.ChatScope, sess *database.Session, text string) {
	if !sc.IsPrivate() {
		return
	}

	t, err := h.deps.Trips.Resolve(ctx, sc, sess)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve active trip", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if t == nil {
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NoActiveTrip)
		return
	}

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: sc.ChatID, Action: models.ChatActionTyping})

	expenses, err := h.deps.Store.ListExpenses(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list expenses", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	events, err := h.deps.Store.ListTravelEvents(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list travel events", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	items, err := h.deps.Store.ListItinerary(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list itinerary", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	places, err := h.deps.Store.ListPlaces(ctx, t.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list places", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	tripData := renderTripData(t, expenses, events, views.GroupItinerary(items), places)

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()

	answer, err := h.deps.GeminiClient.AnswerTripQuestion(aiCtx, text, tripData)
	if err != nil {
		log.ErrorContext(ctx, "Trip question failed", "error", err)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if answer = textutil.Sanitize(answer); answer == "" {
		log.WarnContext(ctx, "Model returned no printable answer", "trip_id", t.ID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	reply(ctx, b, log, sc.ChatID, answer)
}
