// Package chatbot answers free-form finance questions with a fixed, ordered
// set of keyword rules. The first rule whose keyword appears in the
// lower-cased text handles the message.
package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type Intent string

const (
	IntentBalance  Intent = "balance"
	IntentSpending Intent = "spending"
	IntentIncome   Intent = "income"
	IntentRecent   Intent = "recent"
	IntentAdvice   Intent = "advice"
	IntentGreeting Intent = "greeting"
	IntentDefault  Intent = "default"
)

type (
	StatisticsSource interface {
		Statistics(ctx context.Context, session *core.Session) (core.Statistics, error)
	}

	// TransactionLister returns the session user's transactions newest first.
	TransactionLister interface {
		List(ctx context.Context, session *core.Session) ([]core.Transaction, error)
	}

	// HistoryRecorder receives every answered exchange.
	HistoryRecorder interface {
		RecordChat(ctx context.Context, m core.ChatMessage) error
	}

	HistoryReader interface {
		ListChat(ctx context.Context, ownerID string) ([]core.ChatMessage, error)
	}
)

type handler func(ctx context.Context, e *Engine, session *core.Session) (string, error)

type rule struct {
	intent   Intent
	keywords []string
	handle   handler
}

// rules are evaluated top to bottom. Their order is part of the contract:
// overlapping keywords resolve to the earlier rule.
var rules = []rule{
	{IntentBalance, []string{"balance"}, balanceReply},
	{IntentSpending, []string{"spend", "expense"}, spendingReply},
	{IntentIncome, []string{"income", "earn"}, incomeReply},
	{IntentRecent, []string{"recent", "last", "transaction"}, recentReply},
	{IntentAdvice, []string{"advice", "tip", "help"}, adviceReply},
	{IntentGreeting, []string{"hi", "hello", "hey"}, greetingReply},
}

var defaultRule = rule{intent: IntentDefault, handle: defaultReply}

// Classify returns the intent the engine would use for text.
func Classify(text string) Intent {
	return match(text).intent
}

func match(text string) rule {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r
			}
		}
	}
	return defaultRule
}

// defaultRecordTimeout bounds how long a reply waits for its exchange to
// be recorded.
const defaultRecordTimeout = time.Second

type Engine struct {
	stats         StatisticsSource
	txs           TransactionLister
	history       HistoryRecorder
	reader        HistoryReader
	recordTimeout time.Duration
	logger        *log.Logger
	now           func() time.Time
}

type Option func(*Engine)

// WithHistory enables best-effort recording and reading of exchanges.
// Either argument may be nil.
func WithHistory(recorder HistoryRecorder, reader HistoryReader) Option {
	return func(e *Engine) {
		e.history = recorder
		e.reader = reader
	}
}

// WithRecordTimeout sets how long Respond waits for the history recorder.
func WithRecordTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.recordTimeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent(log.ComponentChatbot) }
}

func New(stats StatisticsSource, txs TransactionLister, opts ...Option) *Engine {
	e := &Engine{
		stats:         stats,
		txs:           txs,
		recordTimeout: defaultRecordTimeout,
		logger:        log.Default().WithComponent(log.ComponentChatbot),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Respond always returns a message. Without a session it asks the caller
// to log in before looking at the text. Failures inside an intent are
// turned into that intent's fallback; anything that still escapes becomes
// a generic apology.
func (e *Engine) Respond(ctx context.Context, session *core.Session, text string) string {
	if !session.Authenticated() {
		return loginRequired
	}

	r := match(text)
	reply := e.run(ctx, r, session)
	e.logger.DebugContext(ctx, "Chat message answered",
		log.FieldOwnerID, session.UserID,
		log.FieldIntent, string(r.intent))

	e.record(ctx, session, text, reply)
	return reply
}

func (e *Engine) run(ctx context.Context, r rule, session *core.Session) (reply string) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "Chat handler panicked",
				log.FieldIntent, string(r.intent),
				log.FieldError, fmt.Sprint(p))
			reply = genericApology
		}
	}()
	reply, err := r.handle(ctx, e, session)
	if err != nil {
		e.logger.ErrorContext(ctx, "Chat handler failed",
			log.FieldIntent, string(r.intent),
			log.FieldError, err.Error())
		return genericApology
	}
	return reply
}

// record saves the exchange in a goroutine and waits at most recordTimeout
// for it. A recorder that outlives the wait finishes in the background; the
// request being cancelled does not abort it.
func (e *Engine) record(ctx context.Context, session *core.Session, text, reply string) {
	if e.history == nil {
		return
	}
	msg := core.ChatMessage{
		OwnerID:   session.UserID,
		Message:   text,
		Response:  reply,
		Timestamp: e.now().UTC(),
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.recordTimeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		if err := e.history.RecordChat(rctx, msg); err != nil {
			e.logger.WarnContext(rctx, "Could not save chat history",
				log.FieldOwnerID, session.UserID,
				log.FieldError, err.Error())
		}
	}()

	select {
	case <-done:
	case <-rctx.Done():
		e.logger.WarnContext(ctx, "Chat history still saving, replying without waiting",
			log.FieldOwnerID, session.UserID)
	}
}

// History returns the session user's exchanges oldest first. It never
// fails: no session, no reader, or a read error all yield an empty list.
func (e *Engine) History(ctx context.Context, session *core.Session) []core.ChatMessage {
	if !session.Authenticated() || e.reader == nil {
		return []core.ChatMessage{}
	}
	msgs, err := e.reader.ListChat(ctx, session.UserID)
	if err != nil {
		e.logger.WarnContext(ctx, "Could not load chat history",
			log.FieldOwnerID, session.UserID,
			log.FieldError, err.Error())
		return []core.ChatMessage{}
	}
	if msgs == nil {
		msgs = []core.ChatMessage{}
	}
	return msgs
}
