package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ServerListening    string
	ShuttingDown       string
	SystemMetricsInit  string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	APIServerError     string

	// Universe
	UniverseLoaded     string
	UniverseLoadFailed string
	UniverseSyncFailed string

	// Market data
	BarsSynced       string
	BarsFetchFailed  string
	BarsParseFailed  string
	QuoteAuthMissing string
	QuoteAuthUpdated string

	// Security
	EncryptionKeyInvalid string

	// Strategy
	StrategyRegistered   string
	StrategyUnknownType  string
	StrategyEvalFailed   string
	GrowthMonthsRecorded string

	// Tasks
	TaskConflict string

	// Backtest
	BacktestStarted      string
	BacktestFinished     string
	BacktestFailed       string
	BacktestBought       string
	BacktestSold         string
	BacktestExhausted    string
	BacktestInsufficient string

	// Recommend
	RecommendStarted  string
	RecommendFinished string
	RecommendFailed   string
	RecommendHit      string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	// System
	Starting:           "Starting Quant Core...",
	ConfigLoaded:       "Config loaded (Port: %s)",
	UsingDBPath:        "Using DB path: %s",
	ServerListening:    "Server listening on :%s",
	ShuttingDown:       "Shutting down gracefully...",
	SystemMetricsInit:  "System metrics initialized",
	ConfigLoadFailed:   "Failed to load config: %v",
	DBInitFailed:       "Failed to init database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	APIServerError:     "API server error: %v",

	// Universe
	UniverseLoaded:     "Universe loaded: %d stocks from %s",
	UniverseLoadFailed: "Failed to load stocks file: %v",
	UniverseSyncFailed: "Failed to sync universe to DB: %v",

	// Market data
	BarsSynced:       "Bars synced for %s: %d rows",
	BarsFetchFailed:  "Failed to fetch quotation for %s: %v",
	BarsParseFailed:  "Failed to parse quotation for %s: %v",
	QuoteAuthMissing: "Quote credentials not set, remote fetch disabled",
	QuoteAuthUpdated: "Quote credentials updated",

	// Security
	EncryptionKeyInvalid: "Invalid ENCRYPTION_KEY: %v",

	// Strategy
	StrategyRegistered:   "Strategy registered: %d (%s)",
	StrategyUnknownType:  "Unknown strategy type: %d",
	StrategyEvalFailed:   "Strategy %d evaluation failed for %s: %v",
	GrowthMonthsRecorded: "Growth months recorded for %s: %d months",

	// Tasks
	TaskConflict: "Task %q is already running",

	// Backtest
	BacktestStarted:      "Backtest run %d started (strategy %d, %d stocks)",
	BacktestFinished:     "Backtest run %d finished: %d trades, total profit %.2f",
	BacktestFailed:       "Backtest run %d failed: %v",
	BacktestBought:       "[run %d] BUY %s x%d @ %.2f on %s",
	BacktestSold:         "[run %d] SELL %s x%d @ %.2f on %s (profit %.2f)",
	BacktestExhausted:    "[run %d] %s exhausted its history",
	BacktestInsufficient: "[run %d] cash below floor, stopping buys",

	// Recommend
	RecommendStarted:  "Recommendation scan started (strategy %d, %d stocks)",
	RecommendFinished: "Recommendation scan finished: %d hits",
	RecommendFailed:   "Recommendation scan failed: %v",
	RecommendHit:      "Recommend %s (%s) @ %.2f: %s",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:           "啟動量化核心...",
	ConfigLoaded:       "設定已載入（埠號：%s）",
	UsingDBPath:        "使用資料庫路徑：%s",
	ServerListening:    "服務監聽於 :%s",
	ShuttingDown:       "正在優雅關閉...",
	SystemMetricsInit:  "系統指標初始化完成",
	ConfigLoadFailed:   "讀取設定失敗：%v",
	DBInitFailed:       "初始化資料庫失敗：%v",
	DBMigrationsFailed: "套用資料庫遷移失敗：%v",
	APIServerError:     "API 伺服器錯誤：%v",

	// Universe
	UniverseLoaded:     "股票清單已載入：%d 檔（來源 %s）",
	UniverseLoadFailed: "讀取股票清單失敗：%v",
	UniverseSyncFailed: "同步股票清單到資料庫失敗：%v",

	// Market data
	BarsSynced:       "%s 的日線已同步：%d 筆",
	BarsFetchFailed:  "抓取 %s 行情失敗：%v",
	BarsParseFailed:  "解析 %s 行情失敗：%v",
	QuoteAuthMissing: "行情憑證未設定，停用遠端抓取",
	QuoteAuthUpdated: "行情憑證已更新",

	// Security
	EncryptionKeyInvalid: "ENCRYPTION_KEY 無效：%v",

	// Strategy
	StrategyRegistered:   "策略已註冊：%d（%s）",
	StrategyUnknownType:  "未知的策略類型：%d",
	StrategyEvalFailed:   "策略 %d 評估 %s 失敗：%v",
	GrowthMonthsRecorded: "已記錄 %s 的成長月份：%d 個月",

	// Tasks
	TaskConflict: "任務 %q 正在執行中",

	// Backtest
	BacktestStarted:      "回測 %d 已開始（策略 %d，共 %d 檔）",
	BacktestFinished:     "回測 %d 已完成：%d 筆交易，總獲利 %.2f",
	BacktestFailed:       "回測 %d 失敗：%v",
	BacktestBought:       "[回測 %d] 買進 %s x%d @ %.2f 於 %s",
	BacktestSold:         "[回測 %d] 賣出 %s x%d @ %.2f 於 %s（獲利 %.2f）",
	BacktestExhausted:    "[回測 %d] %s 的歷史資料已用盡",
	BacktestInsufficient: "[回測 %d] 資金低於下限，停止買進",

	// Recommend
	RecommendStarted:  "推薦掃描已開始（策略 %d，共 %d 檔）",
	RecommendFinished: "推薦掃描已完成：%d 檔符合",
	RecommendFailed:   "推薦掃描失敗：%v",
	RecommendHit:      "推薦 %s（%s）@ %.2f：%s",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
