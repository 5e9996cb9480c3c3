// Package main 提供一次性的命令行查询入口，不依赖 HTTP 服务。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"pmc-rag-go/internal/config"
	"pmc-rag-go/internal/pipeline"
	"pmc-rag-go/pkg/embedding"
	"pmc-rag-go/pkg/llm"
	"pmc-rag-go/pkg/log"
	"pmc-rag-go/pkg/vectorindex"
)

func main() {
	question := flag.String("q", "", "question to ask (required)")
	vectorsPath := flag.String("vectors", "data/index/vectors.bin", "path to vectors snapshot")
	metaPath := flag.String("meta", "data/index/meta.jsonl", "path to metadata jsonl")
	embedModel := flag.String("embed-model", envOr("OPENAI_EMBED_MODEL", "text-embedding-3-small"), "embedding model")
	chatModel := flag.String("chat-model", envOr("OPENAI_CHAT_MODEL", "gpt-4o-mini"), "chat model")
	baseURL := flag.String("base-url", envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"), "OpenAI-compatible API base url")
	kPerQuery := flag.Int("k-per-query", 6, "hits per sub-query")
	topK := flag.Int("top-k", 6, "final fused results")
	noReform := flag.Bool("no-reform", false, "disable query reformulation")
	noHyde := flag.Bool("no-hyde", false, "disable hypothetical document expansion")
	nRewrites := flag.Int("n-llm", 6, "number of LLM rewrites")
	asJSON := flag.Bool("json", false, "print JSON result instead of markdown")
	figMaxImages := flag.Int("fig-max-images", 2, "max images to render per figure")
	figCaptionMaxChars := flag.Int("fig-caption-max-chars", 0, "max characters for figure captions (0 = unlimited)")
	flag.Parse()

	if *question == "" {
		fmt.Fprintln(os.Stderr, "usage: query -q \"your question\" [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log.Init("warn", "console", "")
	defer log.Sync()

	apiKey := os.Getenv("OPENAI_API_KEY")
	llmClient := llm.NewClient(config.LLMConfig{APIKey: apiKey, BaseURL: *baseURL, Model: *chatModel})
	embedClient := embedding.NewClient(config.EmbeddingConfig{APIKey: apiKey, BaseURL: *baseURL, Model: *embedModel})

	var retriever *pipeline.Retriever
	var figIndex pipeline.FigureIndex
	store, err := vectorindex.Load(*vectorsPath, *metaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "index unavailable, answering in degraded mode: %v\n", err)
	} else {
		retriever = pipeline.NewRetriever(store, embedClient)
		figIndex = pipeline.BuildFigureIndex(store.Records())
	}

	var reformer *pipeline.Reformer
	if !*noReform {
		reformer = pipeline.NewReformer(llmClient, "")
	}
	pipe := pipeline.New(retriever, reformer, pipeline.NewGenerator(llmClient), nil, figIndex, pipeline.Options{
		KPerQuery:       *kPerQuery,
		TopKFinal:       *topK,
		RRFK:            60,
		MaxContextChars: 12000,
		EnableReform:    !*noReform,
		UseHyde:         !*noHyde,
		NRewrites:       *nRewrites,
	})

	result := pipe.Run(context.Background(), *question)

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	opts := pipeline.DefaultRenderOptions()
	opts.FigMaxImages = *figMaxImages
	opts.FigCaptionMaxChars = *figCaptionMaxChars
	fmt.Println(pipeline.RenderMarkdown(result, opts))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
