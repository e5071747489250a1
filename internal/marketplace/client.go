package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"replyhub/internal/domain"
	"replyhub/internal/infra"
)

// API is the marketplace seller surface the job handlers depend on. The
// concrete Client talks to the real HTTP API; tests plug in fakes.
type API interface {
	ListReviews(ctx context.Context, token string, q ReviewQuery) ([]ReviewData, error)
	AnswerReview(ctx context.Context, token, externalID, text string) error
	ListQuestions(ctx context.Context, token string, q QuestionQuery) ([]QuestionData, error)
	AnswerQuestion(ctx context.Context, token, externalID, text string) error
	ListChats(ctx context.Context, token string, limit, offset int) ([]ChatData, error)
	ChatEvents(ctx context.Context, token string, nextMS int64) (*EventsPage, error)
	SendChatMessage(ctx context.Context, token, chatExternalID, text string) error
	ListProductCards(ctx context.Context, token string, cursor CardsCursor, limit int) (*CardsPage, error)
}

// ReviewQuery mirrors the feedbacks list parameters.
type ReviewQuery struct {
	IsAnswered   *bool
	Take         int
	Skip         int
	Order        string // dateAsc or dateDesc
	DateFromUnix *int64
	DateToUnix   *int64
}

// QuestionQuery mirrors the questions list parameters.
type QuestionQuery struct {
	IsAnswered *bool
	Take       int
	Skip       int
}

// ReviewData is one review as returned by the marketplace.
type ReviewData struct {
	ID          string
	ProductName string
	ProductSKU  string
	Rating      int
	Text        string
	Pros        string
	Cons        string
	AnswerText  string
	CreatedDate time.Time
}

// QuestionData is one buyer question as returned by the marketplace.
type QuestionData struct {
	ID          string
	ProductName string
	Text        string
	AnswerText  string
	CreatedDate time.Time
}

// ChatData is one chat session summary.
type ChatData struct {
	ID            string
	BuyerName     string
	LastMessageAt *time.Time
}

// ChatEvent is one message event from the chat events feed.
type ChatEvent struct {
	ID             string
	ChatExternalID string
	Sender         domain.ChatSender
	Text           string
	EventAt        time.Time
}

// EventsPage is one page of the chat events cursor feed. NextMS is the
// cursor for the following call; More tells whether the feed has further
// pages right now.
type EventsPage struct {
	Events []ChatEvent
	NextMS int64
	More   bool
}

// CardsCursor is the keyset cursor for catalog listing.
type CardsCursor struct {
	UpdatedAt string
	NMID      int64
}

// CardData is one catalog card.
type CardData struct {
	ExternalID string
	Name       string
	Brand      string
	PhotoURL   string
}

// CardsPage is one page of catalog cards plus the cursor for the next one.
type CardsPage struct {
	Cards []CardData
	Next  CardsCursor
	Total int
}

const (
	maxRetryAttempts = 5
	maxRetryWait     = 10 * time.Second
)

// Options configures the marketplace client.
type Options struct {
	BaseURL        string // feedbacks, questions, content
	ChatBaseURL    string // buyer chat
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the marketplace seller API with retry on
// throttling and transient server errors.
type Client struct {
	baseURL     string
	chatBaseURL string
	httpClient  *http.Client
	logger      *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://feedbacks-api.wildberries.ru"
	}
	chatBaseURL := strings.TrimRight(opts.ChatBaseURL, "/")
	if chatBaseURL == "" {
		chatBaseURL = "https://buyer-chat-api.wildberries.ru"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		baseURL:     baseURL,
		chatBaseURL: chatBaseURL,
		httpClient:  httpClient,
		logger:      logger,
	}
}

type feedbacksListResponse struct {
	Data struct {
		Feedbacks []struct {
			ID          string    `json:"id"`
			Text        string    `json:"text"`
			Pros        string    `json:"pros"`
			Cons        string    `json:"cons"`
			ProductValuation int  `json:"productValuation"`
			CreatedDate time.Time `json:"createdDate"`
			Answer      *struct {
				Text string `json:"text"`
			} `json:"answer"`
			ProductDetails struct {
				ProductName     string `json:"productName"`
				SupplierArticle string `json:"supplierArticle"`
			} `json:"productDetails"`
		} `json:"feedbacks"`
	} `json:"data"`
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
}

func (c *Client) ListReviews(ctx context.Context, token string, q ReviewQuery) ([]ReviewData, error) {
	params := url.Values{}
	if q.IsAnswered != nil {
		params.Set("isAnswered", strconv.FormatBool(*q.IsAnswered))
	}
	params.Set("take", strconv.Itoa(q.Take))
	params.Set("skip", strconv.Itoa(q.Skip))
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	if q.DateFromUnix != nil {
		params.Set("dateFrom", strconv.FormatInt(*q.DateFromUnix, 10))
	}
	if q.DateToUnix != nil {
		params.Set("dateTo", strconv.FormatInt(*q.DateToUnix, 10))
	}

	var decoded feedbacksListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/feedbacks?"+params.Encode(), token, nil, &decoded); err != nil {
		return nil, err
	}
	if decoded.Error {
		return nil, fmt.Errorf("marketplace: list reviews: %s", decoded.ErrorText)
	}
	out := make([]ReviewData, 0, len(decoded.Data.Feedbacks))
	for _, f := range decoded.Data.Feedbacks {
		rv := ReviewData{
			ID:          f.ID,
			ProductName: f.ProductDetails.ProductName,
			ProductSKU:  f.ProductDetails.SupplierArticle,
			Rating:      f.ProductValuation,
			Text:        f.Text,
			Pros:        f.Pros,
			Cons:        f.Cons,
			CreatedDate: f.CreatedDate,
		}
		if f.Answer != nil {
			rv.AnswerText = f.Answer.Text
		}
		out = append(out, rv)
	}
	return out, nil
}

func (c *Client) AnswerReview(ctx context.Context, token, externalID, text string) error {
	body := map[string]string{"id": externalID, "text": text}
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/feedbacks/answer", token, body, nil)
}

type questionsListResponse struct {
	Data struct {
		Questions []struct {
			ID          string    `json:"id"`
			Text        string    `json:"text"`
			CreatedDate time.Time `json:"createdDate"`
			Answer      *struct {
				Text string `json:"text"`
			} `json:"answer"`
			ProductDetails struct {
				ProductName string `json:"productName"`
			} `json:"productDetails"`
		} `json:"questions"`
	} `json:"data"`
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
}

func (c *Client) ListQuestions(ctx context.Context, token string, q QuestionQuery) ([]QuestionData, error) {
	params := url.Values{}
	if q.IsAnswered != nil {
		params.Set("isAnswered", strconv.FormatBool(*q.IsAnswered))
	}
	params.Set("take", strconv.Itoa(q.Take))
	params.Set("skip", strconv.Itoa(q.Skip))

	var decoded questionsListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/questions?"+params.Encode(), token, nil, &decoded); err != nil {
		return nil, err
	}
	if decoded.Error {
		return nil, fmt.Errorf("marketplace: list questions: %s", decoded.ErrorText)
	}
	out := make([]QuestionData, 0, len(decoded.Data.Questions))
	for _, qd := range decoded.Data.Questions {
		item := QuestionData{
			ID:          qd.ID,
			ProductName: qd.ProductDetails.ProductName,
			Text:        qd.Text,
			CreatedDate: qd.CreatedDate,
		}
		if qd.Answer != nil {
			item.AnswerText = qd.Answer.Text
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) AnswerQuestion(ctx context.Context, token, externalID, text string) error {
	body := map[string]any{
		"id":     externalID,
		"answer": map[string]string{"text": text},
		"state":  "wbRu",
	}
	return c.doJSON(ctx, http.MethodPatch, c.baseURL+"/api/v1/questions", token, body, nil)
}

type chatsListResponse struct {
	Result []struct {
		ChatID      string `json:"chatID"`
		ClientName  string `json:"clientName"`
		LastEventMS int64  `json:"lastEventMS"`
	} `json:"result"`
	Errors []string `json:"errors"`
}

func (c *Client) ListChats(ctx context.Context, token string, limit, offset int) ([]ChatData, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var decoded chatsListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.chatBaseURL+"/api/v1/seller/chats?"+params.Encode(), token, nil, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("marketplace: list chats: %s", strings.Join(decoded.Errors, "; "))
	}
	out := make([]ChatData, 0, len(decoded.Result))
	for _, ch := range decoded.Result {
		item := ChatData{ID: ch.ChatID, BuyerName: ch.ClientName}
		if ch.LastEventMS > 0 {
			t := time.UnixMilli(ch.LastEventMS)
			item.LastMessageAt = &t
		}
		out = append(out, item)
	}
	return out, nil
}

type chatEventsResponse struct {
	Result struct {
		Next            int64     `json:"next"`
		NewestEventTime time.Time `json:"newestEventTime"`
		Events          []struct {
			EventID   string    `json:"eventID"`
			ChatID    string    `json:"chatID"`
			EventType string    `json:"eventType"`
			IsNewChat bool      `json:"isNewChat"`
			AddTime   time.Time `json:"addTimestamp"`
			Source    string    `json:"source"` // seller or client
			Message   *struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"events"`
		TotalEvents int `json:"totalEvents"`
	} `json:"result"`
	Errors []string `json:"errors"`
}

// ChatEvents reads one page of the chronological event feed starting at the
// nextMS cursor. More is set when the reported total exceeds the page.
func (c *Client) ChatEvents(ctx context.Context, token string, nextMS int64) (*EventsPage, error) {
	params := url.Values{}
	if nextMS > 0 {
		params.Set("next", strconv.FormatInt(nextMS, 10))
	}

	var decoded chatEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.chatBaseURL+"/api/v1/seller/events?"+params.Encode(), token, nil, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("marketplace: chat events: %s", strings.Join(decoded.Errors, "; "))
	}
	page := &EventsPage{
		NextMS: decoded.Result.Next,
		More:   decoded.Result.TotalEvents > len(decoded.Result.Events),
	}
	for _, ev := range decoded.Result.Events {
		if ev.EventType != "message" || ev.Message == nil {
			continue
		}
		sender := domain.ChatSenderBuyer
		if ev.Source == "seller" {
			sender = domain.ChatSenderSeller
		}
		page.Events = append(page.Events, ChatEvent{
			ID:             ev.EventID,
			ChatExternalID: ev.ChatID,
			Sender:         sender,
			Text:           ev.Message.Text,
			EventAt:        ev.AddTime,
		})
	}
	return page, nil
}

func (c *Client) SendChatMessage(ctx context.Context, token, chatExternalID, text string) error {
	body := map[string]string{"chatID": chatExternalID, "message": text}
	return c.doJSON(ctx, http.MethodPost, c.chatBaseURL+"/api/v1/seller/message", token, body, nil)
}

type cardsListResponse struct {
	Cards []struct {
		NMID   int64  `json:"nmID"`
		Title  string `json:"title"`
		Brand  string `json:"brand"`
		Photos []struct {
			Big string `json:"big"`
		} `json:"photos"`
	} `json:"cards"`
	Cursor struct {
		UpdatedAt string `json:"updatedAt"`
		NMID      int64  `json:"nmID"`
		Total     int    `json:"total"`
	} `json:"cursor"`
}

func (c *Client) ListProductCards(ctx context.Context, token string, cursor CardsCursor, limit int) (*CardsPage, error) {
	reqCursor := map[string]any{"limit": limit}
	if cursor.UpdatedAt != "" {
		reqCursor["updatedAt"] = cursor.UpdatedAt
		reqCursor["nmID"] = cursor.NMID
	}
	body := map[string]any{
		"settings": map[string]any{
			"cursor": reqCursor,
			"filter": map[string]any{"withPhoto": -1},
		},
	}

	var decoded cardsListResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/content/v2/get/cards/list", token, body, &decoded); err != nil {
		return nil, err
	}
	page := &CardsPage{
		Next:  CardsCursor{UpdatedAt: decoded.Cursor.UpdatedAt, NMID: decoded.Cursor.NMID},
		Total: decoded.Cursor.Total,
	}
	for _, card := range decoded.Cards {
		item := CardData{
			ExternalID: strconv.FormatInt(card.NMID, 10),
			Name:       card.Title,
			Brand:      card.Brand,
		}
		if len(card.Photos) > 0 {
			item.PhotoURL = card.Photos[0].Big
		}
		page.Cards = append(page.Cards, item)
	}
	return page, nil
}

// doJSON performs one API call with bounded retries. Throttling responses
// honor the X-Ratelimit-Retry header; transient server errors back off a
// fixed second per earlier attempt. Waits never exceed maxRetryWait.
func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, reqBody, respBody any) error {
	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marketplace: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if attempt > 0 {
			wait := retryWait(lastErr, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var bodyReader io.Reader
		if encoded != nil {
			bodyReader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return fmt.Errorf("marketplace: build request: %w", err)
		}
		req.Header.Set("Authorization", token)
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &apiError{status: 0, err: fmt.Errorf("marketplace: http request: %w", err)}
			continue
		}
		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &apiError{status: 0, err: fmt.Errorf("marketplace: read response: %w", readErr)}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &apiError{
				status:     resp.StatusCode,
				retryAfter: parseRetryAfter(resp.Header.Get("X-Ratelimit-Retry")),
				err:        fmt.Errorf("marketplace: throttled (%s %s)", method, endpoint),
			}
			c.logger.Warn().Str("endpoint", endpoint).Msg("marketplace throttled, retrying")
			continue
		case resp.StatusCode >= 500:
			lastErr = &apiError{
				status: resp.StatusCode,
				err:    fmt.Errorf("marketplace: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			}
			continue
		case resp.StatusCode >= 300:
			return fmt.Errorf("%w: status %d: %s", domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		if respBody == nil {
			return nil
		}
		if err := json.Unmarshal(raw, respBody); err != nil {
			return fmt.Errorf("marketplace: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: retries exhausted: %v", domain.ErrProviderFailure, lastErr)
}

type apiError struct {
	status     int
	retryAfter time.Duration
	err        error
}

func (e *apiError) Error() string { return e.err.Error() }

func retryWait(lastErr error, attempt int) time.Duration {
	wait := time.Duration(attempt) * time.Second
	var apiErr *apiError
	if errors.As(lastErr, &apiErr) && apiErr.retryAfter > 0 {
		wait = apiErr.retryAfter
	}
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	if wait <= 0 {
		wait = time.Second
	}
	return wait
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

var _ API = (*Client)(nil)
