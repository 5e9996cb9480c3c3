package pipeline

import (
	"context"
	"fmt"
	"strings"

	"pmc-rag-go/pkg/llm"
	"pmc-rag-go/pkg/log"
)

// UnsureAnswer 是检索不到支撑证据时返回的固定答案。
const UnsureAnswer = "I'm unsure. I couldn't retrieve supporting evidence from the corpus."

// unsureMarkers 用于判断答案是否属于"无法回答"，子串匹配（小写）。
var unsureMarkers = []string{
	"i'm unsure",
	"i am unsure",
	"unsure",
	"not sure",
	"cannot answer",
	"couldn't retrieve",
}

const answerPromptTemplate = `You are a scientific assistant for NASA bioscience literature.
Answer ONLY with information supported in the CONTEXT. If unclear or not supported, say you are unsure.

Citations policy (critical for hyperlinking):
- Always cite using actual PMC identifiers from the CONTEXT in the exact format [PMC1234567].
- Never write placeholders like [PMCID], [PMID], or DOIs. Use uppercase 'PMC' with digits only, no spaces.
- Place citations at the end of each factual sentence, or at the end of a short claim block that spans multiple closely related sentences.
- When multiple studies support a claim, include multiple citations as separate brackets, e.g., [PMC1234567], [PMC7654321].
- Do not fabricate citations; only use PMCIDs present in the CONTEXT. If none apply, say you are unsure.

Style and structure (cohesive, chatbot tone):
- Use Markdown.
- Start with a brief executive summary (1-2 sentences) giving the main takeaway (one citation at the end of the paragraph is sufficient).
- Then provide a short bulleted list of key findings (3-6 bullets max). Keep each bullet to <=2 sentences and cite appropriately.
- Do not repeat the question. Do not merge multiple list items onto one line.

Question: %s
CONTEXT:
%s

Answer:`

const topicPromptTemplate = `You will receive the user's Question and the model Answer. Summarize the main topic in 1-2 words only.
Guidelines:
- PRIORITIZE the core subject of the Question; use the Answer to refine specificity.
- If the Question and Answer diverge, prefer the Question's domain term.
- Output ONLY the topic text (no quotes, no punctuation, no extra words).
- ALWAYS output in English (even if the Question is not in English).
- Use Title Case in English (e.g., 'Microgravity', 'Immune System').
- If unclear, output 'General'.

Question:
%s

Answer:
%s

Topic:`

// Generator 在严格引用约定下调用生成服务产出答案，并提取简短主题。
type Generator struct {
	llm llm.Client
}

// NewGenerator 创建 Generator。
func NewGenerator(client llm.Client) *Generator {
	return &Generator{llm: client}
}

// Generate 基于上下文生成带引用的答案。生成服务失败时返回空串，
// 由调用方映射为降级响应。
func (g *Generator) Generate(ctx context.Context, question, contextBlock string) string {
	prompt := fmt.Sprintf(answerPromptTemplate, question, contextBlock)
	answer, err := g.llm.Complete(ctx, llm.UserMessage(prompt), nil)
	if err != nil {
		log.Errorf("[Generator] 答案生成失败: %v", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

// IsUnanswerable 判断答案是否表示"无法回答"：为空或命中任一标记。
func IsUnanswerable(answer string) bool {
	if answer == "" {
		return true
	}
	lower := strings.ToLower(answer)
	for _, marker := range unsureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExtractTopic 提取 1-2 个英文单词的 Title Case 主题。
// 无法回答的答案直接返回空串且不调用生成服务；其余失败路径回退 "General"。
func (g *Generator) ExtractTopic(ctx context.Context, question, answer string) string {
	if IsUnanswerable(answer) {
		return ""
	}

	prompt := fmt.Sprintf(topicPromptTemplate, question, answer)
	raw, err := g.llm.Complete(ctx, llm.UserMessage(prompt), nil)
	if err != nil {
		log.Warnf("[Generator] 主题提取失败, 回退默认主题: %v", err)
		return "General"
	}

	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return "General"
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return strings.Join(tokens, " ")
}
