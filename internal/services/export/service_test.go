package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/models"
)

func writePDF(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func plainText(t *testing.T, path string) string {
	t.Helper()
	f, reader, err := pdf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := reader.GetPlainText()
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}

func TestChatLogPDF(t *testing.T) {
	service := NewService(arbor.NewLogger())
	turns := []models.ChatTurn{
		models.NewChatTurn(models.RoleUser, "What do pelicans eat?"),
		models.NewChatTurn(models.RoleAssistant, "Mostly **fish**.\n\n- anchovies\n- sardines\n\n```\nscoop()\n```"),
	}

	data, err := service.ChatLogPDF(turns, models.Persona{AIName: "Pal", UserName: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))

	text := plainText(t, writePDF(t, data))
	for _, want := range []string{"Pal", "Sam", "pelicans", "anchovies"} {
		assert.Contains(t, text, want)
	}
}

func TestChatLogPDF_Empty(t *testing.T) {
	service := NewService(arbor.NewLogger())

	data, err := service.ChatLogPDF(nil, models.Persona{})
	require.NoError(t, err)

	ctx, err := api.ReadContextFile(writePDF(t, data))
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.PageCount)
	assert.Contains(t, plainText(t, writePDF(t, data)), "Assistant")
}

func TestChatLogPDF_LongLogPaginates(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var turns []models.ChatTurn
	for i := 0; i < 60; i++ {
		turns = append(turns,
			models.NewChatTurn(models.RoleUser, fmt.Sprintf("Question number %d?", i)),
			models.NewChatTurn(models.RoleAssistant, strings.Repeat("A fairly long answer sentence. ", 8)),
		)
	}

	data, err := service.ChatLogPDF(turns, models.Persona{AIName: "Pal", UserName: "Sam"})
	require.NoError(t, err)

	ctx, err := api.ReadContextFile(writePDF(t, data))
	require.NoError(t, err)
	assert.Greater(t, ctx.PageCount, 1)
}

func TestChatLogPDF_NonLatinText(t *testing.T) {
	service := NewService(arbor.NewLogger())
	turns := []models.ChatTurn{
		models.NewChatTurn(models.RoleUser, "Café crème, naïve résumé"),
		models.NewChatTurn(models.RoleAssistant, "こんにちは"),
	}

	data, err := service.ChatLogPDF(turns, models.Persona{})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "2024-03-09 14:05", formatTimestamp("2024-03-09T14:05:33.123456"))
	assert.Equal(t, "2024-03-09 14:05", formatTimestamp("2024-03-09T14:05:33Z"))
	assert.Equal(t, "yesterday", formatTimestamp("yesterday"))
}
