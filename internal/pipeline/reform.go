package pipeline

import (
	"fmt"
	"strings"

	"context"

	"pmc-rag-go/pkg/llm"
	"pmc-rag-go/pkg/log"
)

const multiQueryPromptTemplate = `You are assisting literature search in NASA biosciences.
Given the question, generate %d diverse, concise search queries that capture:
- Scientific synonyms, related pathways, and organism/model variants
- Outcomes/phenotypes, exposure context (microgravity, radiation), and mission terms (ISS)
- Keep each query < 16 words. Do NOT number them. One per line.%s

Question: %s
Queries:`

const hydePromptTemplate = `Write a short factual abstract (120-200 words) that could appear in a NASA bioscience paper, summarizing likely findings that directly address the question below. Focus on RESULTS-like content and technical terms, avoid speculation.%s

Question: %s

Abstract:`

// ReformedQuery 是一次查询改写的结果。
type ReformedQuery struct {
	Expansions []string
	HydeDoc    string
}

// Reformer 把一个问题扩写为多个查询变体，并可生成 HyDE 假设文档。
// 生成服务失败时分别返回空列表 / 空串，绝不向上抛错：
// 管线至少要能带着原始问题继续执行。
type Reformer struct {
	llm            llm.Client
	outputLanguage string
}

// NewReformer 创建 Reformer。outputLanguage 非空时会在提示词中
// 显式要求输出语言（历史上曾有强制英文与透传两套实现，现合并为此开关）。
func NewReformer(client llm.Client, outputLanguage string) *Reformer {
	return &Reformer{llm: client, outputLanguage: outputLanguage}
}

func (r *Reformer) languageHint() string {
	if r.outputLanguage == "" {
		return ""
	}
	return fmt.Sprintf("\n- ALWAYS write the output in %s.", r.outputLanguage)
}

// Expand 生成至多 n 条多样化的检索查询，保持顺序并按大小写/空白
// 不敏感去重。生成服务失败时返回空列表。
func (r *Reformer) Expand(ctx context.Context, question string, n int) []string {
	if n <= 0 {
		return nil
	}
	prompt := fmt.Sprintf(multiQueryPromptTemplate, n, r.languageHint(), question)
	text, err := r.llm.Complete(ctx, llm.UserMessage(prompt), nil)
	if err != nil {
		log.Warnf("[Reformer] 多查询生成失败, 仅使用原始问题继续: %v", err)
		return nil
	}
	return parseQueryLines(text, n)
}

// parseQueryLines 逐行解析生成结果：去掉常见的列表符号，
// 以小写化、空白折叠后的键做去重，保留首次出现的原文。
func parseQueryLines(text string, n int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(text, "\n") {
		q := strings.Trim(line, " -•\t")
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.Join(strings.Fields(strings.ToLower(q)), " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) >= n {
			break
		}
	}
	return out
}

// Hypothesize 生成 HyDE 假设文档：一段只为了被向量化、作为额外检索
// 查询使用的合成摘要。失败时返回空串。
func (r *Reformer) Hypothesize(ctx context.Context, question string) string {
	prompt := fmt.Sprintf(hydePromptTemplate, r.languageHint(), question)
	text, err := r.llm.Complete(ctx, llm.UserMessage(prompt), nil)
	if err != nil {
		log.Warnf("[Reformer] HyDE 文档生成失败, 跳过: %v", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Reform 执行完整的查询改写：n 条扩写加可选的 HyDE 文档。
func (r *Reformer) Reform(ctx context.Context, question string, n int, useHyde bool) ReformedQuery {
	rq := ReformedQuery{
		Expansions: r.Expand(ctx, question, n),
	}
	if useHyde {
		rq.HydeDoc = r.Hypothesize(ctx, question)
	}
	return rq
}
