package tasks

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"replyhub/internal/ai"
	"replyhub/internal/domain"
	"replyhub/internal/infra"
	"replyhub/internal/marketplace"
)

// The fakes below mirror the repository contracts closely enough that the
// handler tests exercise real sequencing: the billing fake enforces the
// non-negative balance under a lock, the draft fake keeps creation order,
// the shop fake records watermark movement.

type memShops struct {
	mu       sync.Mutex
	shops    map[string]*domain.Shop
	settings map[string]*domain.ShopSettings
}

func newMemShops() *memShops {
	return &memShops{shops: map[string]*domain.Shop{}, settings: map[string]*domain.ShopSettings{}}
}

func (r *memShops) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *memShops) GetSettings(ctx context.Context, shopID string) (*domain.ShopSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.settings[shopID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *st
	return &c, nil
}

func (r *memShops) ListActiveWithSettings(ctx context.Context) ([]domain.ShopWithSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ShopWithSettings
	for id, s := range r.shops {
		if !s.IsActive || s.IsFrozen {
			continue
		}
		out = append(out, domain.ShopWithSettings{Shop: *s, Settings: *r.settings[id]})
	}
	return out, nil
}

func (r *memShops) TouchReviewSync(ctx context.Context, shopID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[shopID].LastReviewSyncAt = &at
	return nil
}

func (r *memShops) AdvanceReviewWatermark(ctx context.Context, shopID string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.settings[shopID]
	if st.LastReviewSeenAt == nil || seenAt.After(*st.LastReviewSeenAt) {
		st.LastReviewSeenAt = &seenAt
	}
	return nil
}

func (r *memShops) TouchQuestionsSync(ctx context.Context, shopID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[shopID].LastQuestionsSyncAt = &at
	return nil
}

func (r *memShops) TouchChatSync(ctx context.Context, shopID string, at time.Time, nextMS *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.settings[shopID]
	st.LastChatSyncAt = &at
	if nextMS != nil {
		st.ChatNextMS = nextMS
	}
	return nil
}

func (r *memShops) TouchCardsSync(ctx context.Context, shopID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[shopID].LastCardsSyncAt = &at
	return nil
}

func (r *memShops) SetOpsFlags(ctx context.Context, shopID string, flags domain.OpsFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[shopID].Ops = flags
	return nil
}

var _ domain.ShopRepository = (*memShops)(nil)

// memBilling enforces the ledger invariants: balance never below zero,
// every mutation appends exactly one entry carrying the balance after.
type memBilling struct {
	mu       sync.Mutex
	balances map[string]int
	ledger   []domain.LedgerEntry
}

func newMemBilling() *memBilling {
	return &memBilling{balances: map[string]int{}}
}

func (b *memBilling) GetBalance(ctx context.Context, accountID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[accountID], nil
}

func (b *memBilling) ApplyCredits(ctx context.Context, accountID string, delta int, reason string, meta map[string]any) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.balances[accountID] + delta
	if next < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	b.balances[accountID] = next
	b.ledger = append(b.ledger, domain.LedgerEntry{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Delta:        delta,
		BalanceAfter: next,
		Reason:       reason,
		Meta:         meta,
		CreatedAt:    time.Now(),
	})
	return next, nil
}

func (b *memBilling) TryCharge(ctx context.Context, accountID string, amount int, reason string, meta map[string]any) (bool, error) {
	_, err := b.ApplyCredits(ctx, accountID, -amount, reason, meta)
	if err == domain.ErrInsufficientCredits {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *memBilling) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range b.ledger {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (b *memBilling) entries(accountID string) []domain.LedgerEntry {
	out, _ := b.ListEntries(context.Background(), accountID, 0)
	return out
}

var _ domain.BillingRepository = (*memBilling)(nil)

type memFlags struct {
	mu sync.Mutex
	on bool
}

func (f *memFlags) IsKillSwitchOn(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on, nil
}

func (f *memFlags) SetKillSwitch(ctx context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = on
	return nil
}

var _ domain.FlagsRepository = (*memFlags)(nil)

type memReviews struct {
	mu      sync.Mutex
	byID    map[string]*domain.Review
	drafts  *memDrafts
}

func newMemReviews(drafts *memDrafts) *memReviews {
	return &memReviews{byID: map[string]*domain.Review{}, drafts: drafts}
}

func (r *memReviews) put(rv *domain.Review) *domain.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	c := *rv
	r.byID[c.ID] = &c
	return rv
}

func (r *memReviews) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *rv
	return &c, nil
}

func (r *memReviews) Upsert(ctx context.Context, rv *domain.Review) (*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if cur.ShopID == rv.ShopID && cur.ExternalID == rv.ExternalID {
			cur.ProductName = rv.ProductName
			cur.Rating = rv.Rating
			cur.Text = rv.Text
			if rv.AnswerText != "" {
				cur.AnswerText = rv.AnswerText
			}
			cur.CreatedDate = rv.CreatedDate
			c := *cur
			return &c, nil
		}
	}
	c := *rv
	c.ID = uuid.NewString()
	r.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memReviews) ListUnansweredWithoutDrafts(ctx context.Context, shopID string, limit int) ([]*domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Review
	for _, rv := range r.byID {
		if rv.ShopID != shopID || rv.Answered() {
			continue
		}
		if r.drafts.hasForSubject(domain.DraftSubjectReview, rv.ID) {
			continue
		}
		c := *rv
		out = append(out, &c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedDate.Before(out[k].CreatedDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memReviews) SetAnswered(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	rv.AnswerText = text
	return nil
}

var _ domain.ReviewRepository = (*memReviews)(nil)

type memQuestions struct {
	mu     sync.Mutex
	byID   map[string]*domain.Question
	drafts *memDrafts
}

func newMemQuestions(drafts *memDrafts) *memQuestions {
	return &memQuestions{byID: map[string]*domain.Question{}, drafts: drafts}
}

func (r *memQuestions) put(q *domain.Question) *domain.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	c := *q
	r.byID[c.ID] = &c
	return q
}

func (r *memQuestions) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *q
	return &c, nil
}

func (r *memQuestions) Upsert(ctx context.Context, q *domain.Question) (*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if cur.ShopID == q.ShopID && cur.ExternalID == q.ExternalID {
			cur.Text = q.Text
			if q.AnswerText != "" {
				cur.AnswerText = q.AnswerText
			}
			c := *cur
			return &c, nil
		}
	}
	c := *q
	c.ID = uuid.NewString()
	r.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memQuestions) ListUnansweredWithoutDrafts(ctx context.Context, shopID string, limit int) ([]*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Question
	for _, q := range r.byID {
		if q.ShopID != shopID || q.Answered() {
			continue
		}
		if r.drafts.hasForSubject(domain.DraftSubjectQuestion, q.ID) {
			continue
		}
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedDate.Before(out[k].CreatedDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memQuestions) SetAnswered(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	q.AnswerText = text
	return nil
}

var _ domain.QuestionRepository = (*memQuestions)(nil)

type memDrafts struct {
	mu    sync.Mutex
	byID  map[string]*domain.Draft
	order []string
}

func newMemDrafts() *memDrafts {
	return &memDrafts{byID: map[string]*domain.Draft{}}
}

func (r *memDrafts) Create(ctx context.Context, d *domain.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = domain.DraftStatusDrafted
	}
	d.CreatedAt = time.Now()
	c := *d
	r.byID[c.ID] = &c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *memDrafts) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *memDrafts) LatestForSubject(ctx context.Context, subject domain.DraftSubject, subjectID string) (*domain.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		d := r.byID[r.order[i]]
		if d.Subject == subject && d.SubjectID == subjectID {
			c := *d
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memDrafts) SetStatus(ctx context.Context, id string, status domain.DraftStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	if status == domain.DraftStatusPublished || status == domain.DraftStatusSent {
		d.PublishedAt = &at
	}
	return nil
}

func (r *memDrafts) hasForSubject(subject domain.DraftSubject, subjectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.byID {
		if d.Subject == subject && d.SubjectID == subjectID {
			return true
		}
	}
	return false
}

func (r *memDrafts) all() []*domain.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Draft, 0, len(r.order))
	for _, id := range r.order {
		c := *r.byID[id]
		out = append(out, &c)
	}
	return out
}

var _ domain.DraftRepository = (*memDrafts)(nil)

type memChats struct {
	mu       sync.Mutex
	byID     map[string]*domain.Chat
	messages map[string][]domain.ChatMessage
}

func newMemChats() *memChats {
	return &memChats{byID: map[string]*domain.Chat{}, messages: map[string][]domain.ChatMessage{}}
}

func (r *memChats) put(c *domain.Chat) *domain.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.byID[cp.ID] = &cp
	return c
}

func (r *memChats) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memChats) UpsertChat(ctx context.Context, c *domain.Chat) (*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if cur.ShopID == c.ShopID && cur.ExternalID == c.ExternalID {
			if c.BuyerName != "" {
				cur.BuyerName = c.BuyerName
			}
			if c.LastMessageAt != nil {
				cur.LastMessageAt = c.LastMessageAt
			}
			cp := *cur
			return &cp, nil
		}
	}
	cp := *c
	cp.ID = uuid.NewString()
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memChats) AddMessage(ctx context.Context, m *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	r.messages[m.ChatID] = append(r.messages[m.ChatID], *m)
	return nil
}

func (r *memChats) RecentMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

var _ domain.ChatRepository = (*memChats)(nil)

type memCards struct {
	mu    sync.Mutex
	cards []domain.ProductCard
}

func (r *memCards) Upsert(ctx context.Context, c *domain.ProductCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cards {
		if r.cards[i].ShopID == c.ShopID && r.cards[i].ExternalID == c.ExternalID {
			r.cards[i] = *c
			return nil
		}
	}
	r.cards = append(r.cards, *c)
	return nil
}

var _ domain.ProductCardRepository = (*memCards)(nil)

type memUsage struct {
	mu   sync.Mutex
	rows []domain.AIUsage
}

func (r *memUsage) Record(ctx context.Context, u *domain.AIUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *u)
	return nil
}

var _ domain.UsageRepository = (*memUsage)(nil)

// fakeMarket answers with canned data and records mutating calls.
type fakeMarket struct {
	mu sync.Mutex

	reviews   []marketplace.ReviewData
	questions []marketplace.QuestionData
	chats     []marketplace.ChatData
	events    *marketplace.EventsPage
	cards     *marketplace.CardsPage

	listReviewsErr error
	answerErr      error

	answeredReviews   map[string]string
	answeredQuestions map[string]string
	sentMessages      map[string]string
	reviewQueries     []marketplace.ReviewQuery
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		answeredReviews:   map[string]string{},
		answeredQuestions: map[string]string{},
		sentMessages:      map[string]string{},
	}
}

func (m *fakeMarket) ListReviews(ctx context.Context, token string, q marketplace.ReviewQuery) ([]marketplace.ReviewData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listReviewsErr != nil {
		return nil, m.listReviewsErr
	}
	m.reviewQueries = append(m.reviewQueries, q)
	if q.Skip >= len(m.reviews) {
		return nil, nil
	}
	end := q.Skip + q.Take
	if end > len(m.reviews) {
		end = len(m.reviews)
	}
	return m.reviews[q.Skip:end], nil
}

func (m *fakeMarket) AnswerReview(ctx context.Context, token, externalID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answerErr != nil {
		return m.answerErr
	}
	m.answeredReviews[externalID] = text
	return nil
}

func (m *fakeMarket) ListQuestions(ctx context.Context, token string, q marketplace.QuestionQuery) ([]marketplace.QuestionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.Skip >= len(m.questions) {
		return nil, nil
	}
	end := q.Skip + q.Take
	if end > len(m.questions) {
		end = len(m.questions)
	}
	return m.questions[q.Skip:end], nil
}

func (m *fakeMarket) AnswerQuestion(ctx context.Context, token, externalID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answerErr != nil {
		return m.answerErr
	}
	m.answeredQuestions[externalID] = text
	return nil
}

func (m *fakeMarket) ListChats(ctx context.Context, token string, limit, offset int) ([]marketplace.ChatData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.chats) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.chats) {
		end = len(m.chats)
	}
	return m.chats[offset:end], nil
}

func (m *fakeMarket) ChatEvents(ctx context.Context, token string, nextMS int64) (*marketplace.EventsPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		return &marketplace.EventsPage{}, nil
	}
	return m.events, nil
}

func (m *fakeMarket) SendChatMessage(ctx context.Context, token, chatExternalID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answerErr != nil {
		return m.answerErr
	}
	m.sentMessages[chatExternalID] = text
	return nil
}

func (m *fakeMarket) ListProductCards(ctx context.Context, token string, cursor marketplace.CardsCursor, limit int) (*marketplace.CardsPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cards == nil {
		return &marketplace.CardsPage{}, nil
	}
	return m.cards, nil
}

var _ marketplace.API = (*fakeMarket)(nil)

// fakeDrafter returns a fixed completion, or the configured error.
type fakeDrafter struct {
	mu    sync.Mutex
	err   error
	text  string
	calls int
}

func (f *fakeDrafter) result() (*ai.DraftResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	text := f.text
	if text == "" {
		text = "Спасибо за отзыв!"
	}
	return &ai.DraftResult{
		Text:             text,
		Model:            "gpt-4o-mini",
		ResponseID:       "resp-test",
		PromptTokens:     100,
		CompletionTokens: 40,
	}, nil
}

func (f *fakeDrafter) ReviewReply(ctx context.Context, st *domain.ShopSettings, rv *domain.Review) (*ai.DraftResult, error) {
	return f.result()
}

func (f *fakeDrafter) QuestionReply(ctx context.Context, st *domain.ShopSettings, q *domain.Question) (*ai.DraftResult, error) {
	return f.result()
}

func (f *fakeDrafter) ChatReply(ctx context.Context, st *domain.ShopSettings, chat *domain.Chat, history []domain.ChatMessage) (*ai.DraftResult, error) {
	return f.result()
}

var _ ai.Drafter = (*fakeDrafter)(nil)

// env bundles the full fake world behind one Deps value.
type env struct {
	deps    *Deps
	jobs    *memJobs
	shops   *memShops
	billing *memBilling
	flags   *memFlags
	reviews *memReviews
	questions *memQuestions
	drafts  *memDrafts
	chats   *memChats
	cards   *memCards
	usage   *memUsage
	market  *fakeMarket
	drafter *fakeDrafter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	drafts := newMemDrafts()
	e := &env{
		jobs:      newMemJobs(),
		shops:     newMemShops(),
		billing:   newMemBilling(),
		flags:     &memFlags{},
		reviews:   newMemReviews(drafts),
		questions: newMemQuestions(drafts),
		drafts:    drafts,
		chats:     newMemChats(),
		cards:     &memCards{},
		usage:     &memUsage{},
		market:    newFakeMarket(),
		drafter:   &fakeDrafter{},
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	cfg := &infra.Config{
		AutoSyncTake:      200,
		CreditsPerDraft:   1,
		CreditsPerPublish: 0,
	}
	e.deps = &Deps{
		Cfg:       cfg,
		Logger:    &logger,
		Jobs:      e.jobs,
		Shops:     e.shops,
		Reviews:   e.reviews,
		Questions: e.questions,
		Drafts:    e.drafts,
		Chats:     e.chats,
		Cards:     e.cards,
		Billing:   e.billing,
		Flags:     e.flags,
		Usage:     e.usage,
		Market:    e.market,
		Drafter:   e.drafter,
	}
	return e
}

// addShop registers an active shop with sane automation defaults and the
// given credit balance.
func (e *env) addShop(id string, credits int) *domain.ShopSettings {
	e.shops.shops[id] = &domain.Shop{
		ID:       id,
		Name:     "Shop " + id,
		APIToken: "token-" + id,
		IsActive: true,
	}
	st := &domain.ShopSettings{
		ShopID:             id,
		AutoSync:           true,
		ReplyMode:          domain.ReplyModeAuto,
		AutoDraft:          true,
		QuestionsReplyMode: domain.ReplyModeAuto,
		QuestionsAutoDraft: true,
		ChatEnabled:        true,
		ChatAutoReply:      true,
	}
	e.shops.settings[id] = st
	e.billing.balances[id] = credits
	return st
}

func mustJob(t *testing.T, p domain.JobPayload) *domain.Job {
	t.Helper()
	raw, err := domain.EncodePayload(p)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return &domain.Job{
		ID:      uuid.NewString(),
		Type:    p.JobType(),
		Status:  domain.JobStatusRunning,
		Payload: raw,
	}
}

// memJobs is the minimal job repository the handlers need: enqueue and the
// queries tests inspect.
type memJobs struct {
	mu   sync.Mutex
	jobs []*domain.Job
}

func newMemJobs() *memJobs { return &memJobs{} }

func (r *memJobs) Enqueue(ctx context.Context, p domain.EnqueueParams) (*domain.Job, error) {
	raw, err := domain.EncodePayload(p.Payload)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j := &domain.Job{
		ID:      uuid.NewString(),
		Type:    p.Payload.JobType(),
		Status:  domain.JobStatusQueued,
		Payload: raw,
	}
	r.jobs = append(r.jobs, j)
	return j, nil
}

func (r *memJobs) byType(t domain.JobType) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, j := range r.jobs {
		if j.Type == t {
			out = append(out, j)
		}
	}
	return out
}

func (r *memJobs) FetchForWork(ctx context.Context, limit int) ([]*domain.Job, error) { return nil, nil }
func (r *memJobs) MarkDone(ctx context.Context, id string) error                      { return nil }
func (r *memJobs) MarkFailed(ctx context.Context, id string, jobErr string, retryIn time.Duration) error {
	return nil
}
func (r *memJobs) Cancel(ctx context.Context, ids []string) (int, error) { return 0, nil }
func (r *memJobs) ExistsPendingForShop(ctx context.Context, t domain.JobType, shopID string, maxAge time.Duration) (bool, error) {
	return false, nil
}
func (r *memJobs) CountByStatus(ctx context.Context, s domain.JobStatus) (int, error) { return 0, nil }
func (r *memJobs) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}
func (r *memJobs) List(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	return nil, nil
}
func (r *memJobs) ListFailed(ctx context.Context, limit int) ([]*domain.Job, error) { return nil, nil }
func (r *memJobs) RetryFailed(ctx context.Context, shopID string, limit int) (int, error) {
	return 0, nil
}

var _ domain.JobRepository = (*memJobs)(nil)
