// Package main 是查询服务的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pmc-rag-go/internal/config"
	"pmc-rag-go/internal/handler"
	"pmc-rag-go/internal/middleware"
	"pmc-rag-go/internal/model"
	"pmc-rag-go/internal/pipeline"
	"pmc-rag-go/internal/repository"
	"pmc-rag-go/internal/service"
	"pmc-rag-go/internal/stats"
	"pmc-rag-go/pkg/database"
	"pmc-rag-go/pkg/embedding"
	"pmc-rag-go/pkg/es"
	"pmc-rag-go/pkg/kafka"
	"pmc-rag-go/pkg/llm"
	"pmc-rag-go/pkg/log"
	"pmc-rag-go/pkg/storage"
	"pmc-rag-go/pkg/vectorindex"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化可选的外部依赖：Redis 缓存、Kafka 用量上报、Elasticsearch 关键词召回
	var answerCache repository.AnswerCacheRepository
	if cfg.Redis.Addr != "" {
		database.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		answerCache = repository.NewAnswerCacheRepository(database.RDB)
	} else {
		log.Info("未配置 Redis, 答案缓存已禁用")
	}
	if cfg.Kafka.Brokers != "" {
		kafka.InitProducer(cfg.Kafka)
	} else {
		log.Info("未配置 Kafka, 用量事件上报已禁用")
	}
	var keyword pipeline.KeywordSearcher
	if cfg.Elasticsearch.Addresses != "" {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Errorf("es 初始化失败, 关键词召回已禁用: %v", err)
		} else {
			indexName := cfg.Elasticsearch.IndexName
			keyword = func(ctx context.Context, query string, k int) ([]model.Record, error) {
				return es.KeywordSearch(ctx, indexName, query, k)
			}
		}
	}

	// 4. 索引快照：本地缺失时先尝试从 MinIO 拉取，再加载；
	//    加载失败不中止进程，服务以降级模式继续对外应答
	if cfg.MinIO.Endpoint != "" {
		if err := storage.InitMinIO(cfg.MinIO); err != nil {
			log.Errorf("MinIO 初始化失败, 跳过索引快照拉取: %v", err)
		} else if err := storage.FetchIndexSnapshot(context.Background(), cfg.MinIO, cfg.Index.VectorsPath, cfg.Index.MetaPath); err != nil {
			log.Errorf("索引快照拉取失败: %v", err)
		}
	}

	var retriever *pipeline.Retriever
	var figIndex pipeline.FigureIndex
	store, err := vectorindex.Load(cfg.Index.VectorsPath, cfg.Index.MetaPath)
	if err != nil {
		log.Errorf("向量索引加载失败, 服务以降级模式启动: %v", err)
	} else {
		log.Infof("向量索引加载成功, 共 %d 条记录, 维度 %d", store.Count(), store.Dim())
		retriever = pipeline.NewRetriever(store, embedding.NewClient(cfg.Embedding))
		figIndex = pipeline.BuildFigureIndex(store.Records())
	}

	// 5. 组装查询管线与业务层
	llmClient := llm.NewClient(cfg.LLM)
	var reformer *pipeline.Reformer
	if cfg.Pipeline.EnableReform {
		reformer = pipeline.NewReformer(llmClient, cfg.Pipeline.OutputLanguage)
	}
	pipe := pipeline.New(retriever, reformer, pipeline.NewGenerator(llmClient), keyword, figIndex, pipeline.Options{
		KPerQuery:       cfg.Pipeline.KPerQuery,
		TopKFinal:       cfg.Pipeline.TopKFinal,
		RRFK:            cfg.Pipeline.RRFK,
		MaxContextChars: cfg.Pipeline.MaxContextChars,
		EnableReform:    cfg.Pipeline.EnableReform,
		UseHyde:         cfg.Pipeline.UseHyde,
		NRewrites:       cfg.Pipeline.NRewrites,
	})

	collector := stats.NewCollector(200)
	queryService := service.NewQueryService(pipe, answerCache, collector, time.Duration(cfg.Pipeline.CacheTTLMinutes)*time.Minute)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		queryHandler := handler.NewQueryHandler(queryService)
		apiV1.POST("/query", queryHandler.Query)
		apiV1.POST("/query/markdown", queryHandler.QueryMarkdown)
		apiV1.GET("/stats", handler.NewStatsHandler(queryService).Stats)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "index_available": pipe.Available()})
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
