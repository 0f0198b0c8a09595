package answer

import (
	"regexp"
	"strings"

	"github.com/phuslu/log"
	"github.com/tidwall/gjson"
)

var citationPattern = regexp.MustCompile(`##\d+\$\$`)

// StripCitations 去掉知识库插入的 ##<n>$$ 引用标记
func StripCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "")
}

// ParseCompletion 解析知识库 completion 响应：
// data.answer 为回答，data.reference.doc_aggs[].doc_name 按换行拼接为引用。
// 任一部分结构不符时回答和引用都为空并记录告警，从不返回错误
func ParseCompletion(raw []byte) Answer {
	if !gjson.ValidBytes(raw) {
		log.Warn().Int("bytes", len(raw)).Msg("Completion response is not valid JSON")
		return Answer{}
	}
	doc := gjson.ParseBytes(raw)

	text := doc.Get("data.answer")
	var ans Answer
	switch text.Type {
	case gjson.String:
		ans.Text = StripCitations(text.Str)
	case gjson.Null:
		if !text.Exists() {
			return mismatch("data.answer", text)
		}
	default:
		return mismatch("data.answer", text)
	}

	ref := doc.Get("data.reference")
	if !ref.Exists() || ref.Type == gjson.Null {
		return ans
	}
	if !ref.IsObject() {
		return mismatch("data.reference", ref)
	}

	aggs := ref.Get("doc_aggs")
	if !aggs.Exists() || isEmpty(aggs) {
		return ans
	}
	if !aggs.IsArray() {
		return mismatch("data.reference.doc_aggs", aggs)
	}

	names, ok := docNames(aggs)
	if !ok {
		return mismatch("data.reference.doc_aggs", aggs)
	}
	ans.Reference = strings.Join(names, "\n")
	return ans
}

func mismatch(field string, value gjson.Result) Answer {
	log.Warn().Str("field", field).Str("type", value.Type.String()).Msg("Unexpected completion shape")
	return Answer{}
}

// isEmpty 空串、空数组、空对象、false、0 都视为没有引用
func isEmpty(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.String:
		return v.Str == ""
	case gjson.Number:
		return v.Num == 0
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) == 0
		}
		return len(v.Map()) == 0
	}
	return false
}

func docNames(aggs gjson.Result) ([]string, bool) {
	items := aggs.Array()
	names := make([]string, 0, len(items))
	for _, item := range items {
		name := item.Get("doc_name")
		if !item.IsObject() || name.Type != gjson.String {
			return nil, false
		}
		names = append(names, name.Str)
	}
	return names, true
}
