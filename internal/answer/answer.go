package answer

import (
	"context"
	"strings"

	"github.com/phuslu/log"
)

// FallbackErrorText 兜底模型也拿不到答案时写入报告的说明
const FallbackErrorText = "Unable to find an answer for this requirement. Please review it manually."

// ErrorReference 失败行的 Reference 列
const ErrorReference = "Error"

// Answer 一次问答的结果，两个字段都可能为空
type Answer struct {
	Text      string
	Reference string
}

// Answerer 问答后端：知识库会话或通用大模型
type Answerer interface {
	Answer(ctx context.Context, question string) (Answer, error)
}

// Record 报告中的一行
type Record struct {
	Requirement string
	Explanation string
	Reference   string
}

// Options 问题前缀、空答案标记与兜底模型
type Options struct {
	QuestionHeader string
	FallbackHeader string
	FallbackModel  string
	NullSentinel   string
}

// Resolver 先问知识库，无答案时转问兜底模型
type Resolver struct {
	fallback Answerer
	opts     Options
}

// NewResolver fallback 为 nil 时无答案的行直接记为 Error
func NewResolver(fallback Answerer, opts Options) *Resolver {
	return &Resolver{
		fallback: fallback,
		opts:     opts,
	}
}

// Resolve 为一条需求生成一行报告。
// 只有知识库会话本身不可达时返回 error，其余问题都落在 Record 里
func (r *Resolver) Resolve(ctx context.Context, session Answerer, requirement string) (Record, error) {
	record := Record{Requirement: requirement}

	primary, err := session.Answer(ctx, withHeader(r.opts.QuestionHeader, requirement))
	if err != nil {
		return record, err
	}

	if !r.notFound(primary.Text) {
		record.Explanation = primary.Text
		record.Reference = primary.Reference
		return record, nil
	}

	log.Info().Str("requirement", requirement).Msg("No knowledge base answer, asking fallback model")

	if text, ok := r.askFallback(ctx, requirement); ok {
		record.Explanation = text
		record.Reference = r.opts.FallbackModel
		return record, nil
	}

	record.Explanation = FallbackErrorText
	record.Reference = ErrorReference
	return record, nil
}

func (r *Resolver) askFallback(ctx context.Context, requirement string) (string, bool) {
	if r.fallback == nil {
		log.Warn().Str("requirement", requirement).Msg("Fallback model not configured")
		return "", false
	}

	ans, err := r.fallback.Answer(ctx, withHeader(r.opts.FallbackHeader, requirement))
	if err != nil {
		log.Error().Err(err).Str("model", r.opts.FallbackModel).Msg("Fallback model query failed")
		return "", false
	}
	if strings.TrimSpace(ans.Text) == "" {
		log.Warn().Str("model", r.opts.FallbackModel).Msg("Fallback model returned an empty answer")
		return "", false
	}
	return ans.Text, true
}

// notFound 空答案或等于哨兵字符串（忽略大小写与首尾空白）
func (r *Resolver) notFound(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	sentinel := strings.TrimSpace(r.opts.NullSentinel)
	return sentinel != "" && strings.EqualFold(text, sentinel)
}

func withHeader(header, question string) string {
	if strings.Contains(question, header) {
		return question
	}
	return header + question
}
