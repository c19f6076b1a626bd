package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/config"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/services/digitalocean"
	"github.com/sahilchouksey/syllabus-sync/services/storage"
	"github.com/sahilchouksey/syllabus-sync/utils/cache"
	"github.com/sahilchouksey/syllabus-sync/utils/metrics"
)

// Upstreams are the two external services the pipeline and chat depend on
type Upstreams struct {
	OCR       *services.OCRClient
	Inference *digitalocean.InferenceClient
}

// NewUpstreams builds the OCR and inference clients, each behind its own circuit breaker
func NewUpstreams(env *config.EnvironmentVariable, logger *zap.Logger) (*Upstreams, error) {
	if env.OCR_SERVICE_URL == "" {
		return nil, fmt.Errorf("OCR_SERVICE_URL is not set")
	}
	if env.MODEL_ACCESS_KEY == "" {
		return nil, fmt.Errorf("MODEL_ACCESS_KEY is not set")
	}

	return &Upstreams{
		OCR: services.NewOCRClient(services.OCRConfig{
			URL:    env.OCR_SERVICE_URL,
			Secret: env.OCR_SECRET,
			Logger: logger.Named("ocr"),
		}),
		Inference: digitalocean.NewInferenceClient(digitalocean.InferenceConfig{
			APIKey:  env.MODEL_ACCESS_KEY,
			BaseURL: env.INFERENCE_BASE_URL,
			Model:   env.INFERENCE_MODEL,
			Logger:  logger.Named("inference"),
		}),
	}, nil
}

// NewResultCache picks the result cache backend. A redis backend that cannot be reached falls back
// to the in-memory cache; the returned close function is always safe to call.
func NewResultCache(env *config.EnvironmentVariable, logger *zap.Logger) (services.ResultCache, func()) {
	if env.RESULT_CACHE_BACKEND == "redis" {
		redisCache, err := cache.NewRedisCache(env.REDIS_URL)
		if err == nil {
			logger.Info("using redis result cache", zap.Duration("ttl", env.RESULT_CACHE_TTL))
			return services.NewRedisResultCache(redisCache, env.RESULT_CACHE_TTL, logger.Named("result_cache")), func() {
				if err := redisCache.Close(); err != nil {
					logger.Warn("failed to close redis", zap.Error(err))
				}
			}
		}
		logger.Warn("redis unavailable, falling back to in-memory result cache", zap.Error(err))
	}
	return services.NewMemoryResultCache(env.RESULT_CACHE_TTL), func() {}
}

// NewObjectStore picks the storage backend for uploaded bytes
func NewObjectStore(env *config.EnvironmentVariable) (storage.Store, error) {
	switch env.STORAGE_BACKEND {
	case "", "local":
		local, err := storage.NewLocalStore(env.UPLOAD_DIR)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "spaces":
		spaces, err := storage.NewSpacesStore(storage.SpacesConfig{
			AccessKey: env.DO_SPACES_ACCESS_KEY,
			SecretKey: env.DO_SPACES_SECRET_KEY,
			Bucket:    env.DO_SPACES_BUCKET,
			Region:    env.DO_SPACES_REGION,
			Endpoint:  env.DO_SPACES_ENDPOINT,
		})
		if err != nil {
			return nil, err
		}
		return spaces, nil
	}
	return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", env.STORAGE_BACKEND)
}

// NewPipeline assembles the syllabus pipeline from its upstreams
func NewPipeline(up *Upstreams, resultCache services.ResultCache, m *metrics.PipelineMetrics, logger *zap.Logger) *services.SyllabusPipeline {
	return services.NewSyllabusPipeline(up.OCR, up.Inference,
		services.WithResultCache(resultCache),
		services.WithPipelineMetrics(m),
		services.WithPipelineLogger(logger.Named("pipeline")),
	)
}
