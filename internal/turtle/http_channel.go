package turtle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/turtle-miner/internal/eventbus"
	"github.com/annel0/turtle-miner/internal/logging"
	"github.com/google/uuid"
)

// HTTPChannel реализует CommandChannel поверх HTTP-сервера команд
// (Flask-совместимый протокол: POST /commands, GET /status/<label>).
// Статус опрашивается фоновой горутиной; геттеры отдают кэш.
type HTTPChannel struct {
	baseURL string
	label   string
	client  *http.Client

	mu         sync.RWMutex
	status     Status
	statusOK   bool      // Получен ли хоть один статус
	lastPoll   time.Time // Время последнего успешного опроса
	enqueued   bool      // Команда поставлена, но туртл еще не отчитался занятостью
	enqueuedAt time.Time // Время постановки последней команды
	cancelFn   context.CancelFunc
	pollEvery  time.Duration
}

// pickupWindow — срок, в течение которого после постановки команды ждем
// появления isBusy в статусе. Быстрые команды (прокоп уже пустого вокселя)
// выполняются между опросами и окна занятости не показывают вовсе: опрос,
// начатый после истечения срока и заставший туртла свободным, означает,
// что команда уже выполнена, и локальный флаг снимается.
func (hc *HTTPChannel) pickupWindow() time.Duration {
	return 2 * hc.pollEvery
}

// NewHTTPChannel создаёт канал и запускает фоновый опрос статуса
func NewHTTPChannel(baseURL, label string, pollEvery time.Duration) *HTTPChannel {
	ctx, cancel := context.WithCancel(context.Background())
	hc := &HTTPChannel{
		baseURL:   baseURL,
		label:     label,
		client:    &http.Client{Timeout: 10 * time.Second},
		cancelFn:  cancel,
		pollEvery: pollEvery,
	}
	go hc.pollLoop(ctx)
	return hc
}

// Close останавливает фоновый опрос
func (hc *HTTPChannel) Close() {
	hc.cancelFn()
}

func (hc *HTTPChannel) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(hc.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := hc.pollStatus(ctx); err != nil {
				logging.Warn("Опрос статуса туртла %s: %v", hc.label, err)
			}
		}
	}
}

func (hc *HTTPChannel) pollStatus(ctx context.Context) error {
	pollStart := time.Now()
	url := fmt.Sprintf("%s/status/%s", hc.baseURL, hc.label)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("статус %d от сервера команд", resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("декодирование статуса: %w", err)
	}

	hc.mu.Lock()
	changed := st != hc.status || !hc.statusOK
	hc.status = st
	hc.statusOK = true
	hc.lastPoll = time.Now()
	switch {
	case st.IsBusy:
		// Туртл подтвердил получение команды — снимаем локальный флаг
		hc.enqueued = false
	case hc.enqueued && pollStart.Sub(hc.enqueuedAt) >= hc.pickupWindow():
		// Окно занятости не застали: команда выполнилась между опросами
		hc.enqueued = false
	}
	hc.mu.Unlock()

	if changed {
		hc.publishStatus(ctx, st)
	}
	return nil
}

// publishStatus отправляет обновление статуса в глобальную шину событий
func (hc *HTTPChannel) publishStatus(ctx context.Context, st Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    "turtle",
		EventType: eventbus.EventTurtleStatus,
		Version:   1,
		Payload:   payload,
	}
	if err := eventbus.Publish(ctx, ev); err != nil {
		logging.Warn("Публикация статуса туртла %s: %v", hc.label, err)
	}
}

// Enqueue отправляет одну команду в очередь туртла на сервере команд
func (hc *HTTPChannel) Enqueue(ctx context.Context, cmd Command) error {
	if hc.IsBusy() {
		return ErrBusy
	}

	body, err := json.Marshal(map[string]interface{}{
		"label":    hc.label,
		"commands": []string{string(cmd.Type)},
	})
	if err != nil {
		return err
	}

	url := hc.baseURL + "/commands"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.client.Do(req)
	if err != nil {
		return fmt.Errorf("отправка команды: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер команд вернул статус %d", resp.StatusCode)
	}

	// До следующего успешного опроса считаем канал занятым:
	// между постановкой команды и появлением isBusy в статусе есть лаг.
	hc.mu.Lock()
	hc.enqueued = true
	hc.enqueuedAt = time.Now()
	hc.mu.Unlock()

	logging.Debug("[Turtle %s] → %s", hc.label, cmd.Type)
	return nil
}

// IsBusy сообщает, занят ли туртл (по кэшированному статусу)
func (hc *HTTPChannel) IsBusy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.enqueued || hc.status.IsBusy
}

// CurrentPosition — последняя известная позиция туртла
func (hc *HTTPChannel) CurrentPosition() Position {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.status.Position
}

// CurrentFacing — последнее известное направление
func (hc *HTTPChannel) CurrentFacing() Direction {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	d, err := ParseDirection(hc.status.Direction)
	if err != nil {
		return North
	}
	return d
}

// StatusFresh сообщает, получен ли статус и не старше ли он maxAge
func (hc *HTTPChannel) StatusFresh(maxAge time.Duration) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.statusOK && time.Since(hc.lastPoll) <= maxAge
}

// LastStatus возвращает копию последнего статуса (для REST API)
func (hc *HTTPChannel) LastStatus() (Status, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	return hc.status, hc.statusOK
}
