package blueprint

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartslate/polaris/internal/model"
)

// ExportMarkdown は完成済みブループリントをMarkdown文書として出力する。
// 未完成のブループリントにはBLUEPRINT_NOT_READYを返す。
// 同一のブループリントに対して常に同一の出力を返す（決定的）。
func (s *Service) ExportMarkdown(ctx context.Context, userID, blueprintID string) (string, error) {
	bp, err := s.findOwned(ctx, userID, blueprintID)
	if err != nil {
		return "", err
	}
	if bp.Status != model.BlueprintStatusComplete {
		return "", model.NewBlueprintNotReadyError()
	}

	return renderMarkdown(bp), nil
}

// renderMarkdown はブループリントをMarkdownに整形する。
func renderMarkdown(bp *model.Blueprint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", bp.Title)
	fmt.Fprintf(&b, "作成日: %s\n\n", bp.CreatedAt.UTC().Format("2006-01-02"))

	if len(bp.Questions) > 0 {
		b.WriteString("## ヒアリング内容\n\n")

		answers := make(map[string]string, len(bp.Answers))
		for _, a := range bp.Answers {
			answers[a.QuestionID] = a.Value
		}

		for _, q := range bp.Questions {
			fmt.Fprintf(&b, "### %s\n\n", q.Prompt)
			if value, ok := answers[q.ID]; ok && value != "" {
				fmt.Fprintf(&b, "%s\n\n", value)
			} else {
				b.WriteString("（未回答）\n\n")
			}
		}
	}

	b.WriteString("## ブループリント\n\n")
	b.WriteString(bp.Content)
	if !strings.HasSuffix(bp.Content, "\n") {
		b.WriteString("\n")
	}

	return b.String()
}
