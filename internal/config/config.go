package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	PublishImgur = "imgur"
	PublishS3    = "s3"

	CaptionOpenAI = "openai"
	CaptionAzure  = "azure"
	CaptionGemini = "gemini"
)

type Config struct {
	Port                string
	UploadDir           string
	VideoPath           string
	OutputDir           string
	FrameRate           float64
	SampleInterval      int
	MaxFrameSize        int64
	ClearUploadsOnStart bool
	LogLevel            string
	LogFormat           string
	ExternalTimeout     time.Duration

	Publish PublishConfig
	Caption CaptionConfig
}

type PublishConfig struct {
	Backend       string
	ImgurClientID string
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	S3URLExpiry   time.Duration
}

type CaptionConfig struct {
	Backend         string
	OpenAIAPIKey    string
	OpenAIModel     string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string
	GeminiAPIKey    string
	GeminiModel     string
	DisplayWidth    int
	MaxTokens       int
}

// Load reads the configuration from the environment, falling back to defaults
// for anything unset. Malformed numeric values are reported rather than ignored.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "5000"),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		VideoPath: getEnv("VIDEO_PATH", "output.mp4"),
		OutputDir: getEnv("OUTPUT_DIR", "output"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		Publish: PublishConfig{
			Backend:       strings.ToLower(getEnv("PUBLISH_BACKEND", PublishImgur)),
			ImgurClientID: os.Getenv("IMGUR_CLIENT_ID"),
			S3Bucket:      os.Getenv("S3_BUCKET"),
			S3Region:      os.Getenv("S3_REGION"),
			S3Prefix:      getEnv("S3_PREFIX", "best-frames"),
		},
		Caption: CaptionConfig{
			Backend:         strings.ToLower(getEnv("CAPTION_BACKEND", CaptionOpenAI)),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
			AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", "NewOmni"),
			AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2023-12-01-preview"),
			GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
	}

	var err error
	if cfg.FrameRate, err = getFloat("FRAME_RATE", 5); err != nil {
		return nil, err
	}
	if cfg.SampleInterval, err = getInt("SAMPLE_INTERVAL", 1); err != nil {
		return nil, err
	}
	maxSize, err := getInt("MAX_FRAME_SIZE", 10<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxFrameSize = int64(maxSize)
	if cfg.ClearUploadsOnStart, err = getBool("CLEAR_UPLOADS_ON_START", true); err != nil {
		return nil, err
	}
	if cfg.ExternalTimeout, err = getDuration("EXTERNAL_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Publish.S3URLExpiry, err = getDuration("S3_URL_EXPIRY", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Caption.DisplayWidth, err = getInt("DISPLAY_WIDTH", 0); err != nil {
		return nil, err
	}
	if cfg.Caption.MaxTokens, err = getInt("CAPTION_MAX_TOKENS", 300); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the pipeline settings and the credentials required by the
// selected publish and caption backends.
func (c *Config) Validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %v", c.FrameRate)
	}
	if c.SampleInterval < 1 {
		return fmt.Errorf("sample interval must be at least 1, got %d", c.SampleInterval)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("max frame size must be positive, got %d", c.MaxFrameSize)
	}
	if c.UploadDir == "" || c.OutputDir == "" || c.VideoPath == "" {
		return fmt.Errorf("upload dir, output dir and video path are required")
	}
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	return c.Caption.Validate()
}

func (p PublishConfig) Validate() error {
	switch p.Backend {
	case PublishImgur:
		if p.ImgurClientID == "" {
			return fmt.Errorf("IMGUR_CLIENT_ID is required for the imgur publish backend")
		}
	case PublishS3:
		if p.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 publish backend")
		}
		if p.S3URLExpiry <= 0 {
			return fmt.Errorf("S3_URL_EXPIRY must be positive")
		}
	default:
		return fmt.Errorf("unsupported publish backend: %q", p.Backend)
	}
	return nil
}

func (c CaptionConfig) Validate() error {
	switch c.Backend {
	case CaptionOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai caption backend")
		}
	case CaptionAzure:
		if c.AzureEndpoint == "" || c.AzureAPIKey == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY are required for the azure caption backend")
		}
	case CaptionGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini caption backend")
		}
	default:
		return fmt.Errorf("unsupported caption backend: %q", c.Backend)
	}
	if c.DisplayWidth < 0 {
		return fmt.Errorf("display width cannot be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
