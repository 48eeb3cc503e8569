package memorize

import (
	"context"
	"encoding/json"
	"strings"

	"memu/internal/memu/llmclient"
	"memu/internal/memu/model"
	"memu/internal/memu/util"
)

const preprocessSystemPrompt = "You are a careful content preprocessor. Follow the requested output format exactly."

type conversationSegmentPayload struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Caption string `json:"caption"`
}

type conversationPayload struct {
	Segments []conversationSegmentPayload `json:"segments"`
}

// preprocess dispatches on modality and fills s.Segments. Unrecognized
// modalities fall back to a single pass-through segment over s.RawText,
// matching model.Modality.Recognized's "unknown is not an error" contract.
func preprocess(ctx context.Context, s *State, llm llmclient.Client, io IO) error {
	switch s.Request.Modality {
	case model.ModalityConversation:
		return preprocessConversation(ctx, s, llm)
	case model.ModalityDocument, model.ModalityText:
		return preprocessDocumentLike(ctx, s, llm, s.RawText)
	case model.ModalityImage:
		return preprocessImage(ctx, s, llm)
	case model.ModalityAudio:
		return preprocessAudio(ctx, s, llm)
	case model.ModalityVideo:
		return preprocessVideo(ctx, s, llm, io)
	default:
		s.Segments = []Segment{{Text: s.RawText}}
		return nil
	}
}

// preprocessConversation asks the LLM to segment the conversation, then
// rebuilds each segment's Text by slicing the original transcript by line
// range: the LLM's own rewrite of the conversation is discarded, only its
// segmentation boundaries and captions are kept (spec.md §4.3's
// authoritative-text invariant).
func preprocessConversation(ctx context.Context, s *State, llm llmclient.Client) error {
	prompt := s.Prompts.PreprocessPrompt(model.ModalityConversation, map[string]string{"resource": s.RawText})
	raw, err := llm.Summarize(ctx, "preprocess", prompt, preprocessSystemPrompt)
	if err != nil {
		return upstreamPreprocess(err)
	}

	lines := strings.Split(s.RawText, "\n")
	payload, err := extractConversationPayload(raw)
	if err != nil || len(payload.Segments) == 0 {
		// Parse failure degrades to one pass-through segment covering the
		// whole transcript rather than aborting the run.
		s.Segments = []Segment{{Text: s.RawText, StartLine: 0, EndLine: len(lines)}}
		return nil
	}

	segments := make([]Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		start, end := clampLineRange(seg.Start, seg.End, len(lines))
		segments = append(segments, Segment{
			Text:      strings.Join(lines[start:end], "\n"),
			Caption:   seg.Caption,
			StartLine: start,
			EndLine:   end,
		})
	}
	s.Segments = segments
	return nil
}

func extractConversationPayload(raw string) (conversationPayload, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	var payload conversationPayload
	if start < 0 || end < 0 || end < start {
		return payload, errNoJSONPayload
	}
	err := json.Unmarshal([]byte(raw[start:end+1]), &payload)
	return payload, err
}

func clampLineRange(start, end, total int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return start, end
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

// chunkByTokenBudget splits raw into line-range-bounded segments, each
// holding no more than maxTokens worth of content per util.CountTokens.
// maxTokens <= 0 means unbounded: the whole resource becomes one segment,
// matching preprocess's prior pass-through behavior.
func chunkByTokenBudget(raw string, maxTokens int) []Segment {
	if maxTokens <= 0 || raw == "" {
		return []Segment{{Text: raw, StartLine: 0, EndLine: lineCount(raw)}}
	}

	lines := strings.Split(raw, "\n")
	segments := make([]Segment, 0, 1)

	start := 0
	tokens := 0
	for i, line := range lines {
		lineTokens := util.CountTokens(line)
		if i > start && tokens+lineTokens > maxTokens {
			segments = append(segments, Segment{
				Text:      strings.Join(lines[start:i], "\n"),
				StartLine: start,
				EndLine:   i,
			})
			start = i
			tokens = 0
		}
		tokens += lineTokens
	}
	segments = append(segments, Segment{
		Text:      strings.Join(lines[start:], "\n"),
		StartLine: start,
		EndLine:   len(lines),
	})
	return segments
}

// extractTag returns the trimmed content between <tag> and </tag> in raw,
// tolerating surrounding prose, or false if the tag is absent.
func extractTag(raw, tag string) (string, bool) {
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	start := strings.Index(raw, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(raw[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(raw[start : start+end]), true
}

// preprocessDocumentLike summarizes text with the document preprocessing
// prompt and parses <processed_content>/<caption>, falling back to text
// itself when the model's response omits the tags (spec.md §4.5 step 2's
// document/audio-transcript path). Audio falls through to this after
// transcription, per the same step.
func preprocessDocumentLike(ctx context.Context, s *State, llm llmclient.Client, text string) error {
	prompt := s.Prompts.PreprocessPrompt(model.ModalityDocument, map[string]string{"resource": text})
	raw, err := llm.Summarize(ctx, "preprocess", prompt, preprocessSystemPrompt)
	if err != nil {
		return upstreamPreprocess(err)
	}

	content, ok := extractTag(raw, "processed_content")
	if !ok || content == "" {
		content = text
	}
	caption, _ := extractTag(raw, "caption")

	s.Segments = chunkByTokenBudget(content, s.MaxSegmentTokens)
	if caption != "" {
		for i := range s.Segments {
			s.Segments[i].Caption = caption
		}
	}
	return nil
}

// parseVisionResponse parses <detailed_description>/<caption> out of a
// vision call's response (spec.md §4.5 step 2's image/video path). Either
// tag missing degrades to using the raw response as both text and caption,
// so invariant #3 ("image/video resources carry a non-empty caption
// whenever preprocessing succeeded") still holds.
func parseVisionResponse(raw string) (text, caption string) {
	text, ok := extractTag(raw, "detailed_description")
	if !ok || text == "" {
		text = raw
	}
	caption, ok = extractTag(raw, "caption")
	if !ok || caption == "" {
		caption = text
	}
	return text, caption
}

func preprocessImage(ctx context.Context, s *State, llm llmclient.Client) error {
	prompt := s.Prompts.PreprocessPrompt(model.ModalityImage, nil)
	raw, err := llm.Vision(ctx, "vision", prompt, s.LocalPath, preprocessSystemPrompt)
	if err != nil {
		return upstreamPreprocess(err)
	}
	text, caption := parseVisionResponse(raw)
	s.Segments = []Segment{{Text: text, Caption: caption}}
	return nil
}

// preprocessAudio transcribes the audio file, then falls through to the
// document preprocessing path over that transcript (spec.md §4.5 step 2).
func preprocessAudio(ctx context.Context, s *State, llm llmclient.Client) error {
	transcript, err := llm.Transcribe(ctx, "transcription", s.LocalPath)
	if err != nil {
		return upstreamPreprocess(err)
	}
	return preprocessDocumentLike(ctx, s, llm, transcript)
}

// preprocessVideo extracts a representative frame via the optional
// IO.ExtractFrame hook and captions it; absence or failure of a frame
// extractor degrades to a pass-through segment rather than failing the run,
// matching the original's defensive VideoFrameExtractor fallback.
func preprocessVideo(ctx context.Context, s *State, llm llmclient.Client, io IO) error {
	if io.ExtractFrame == nil {
		s.Segments = []Segment{{Text: s.RawText}}
		return nil
	}
	framePath, err := io.ExtractFrame(ctx, s.LocalPath)
	if err != nil {
		s.Segments = []Segment{{Text: s.RawText}}
		return nil
	}
	prompt := s.Prompts.PreprocessPrompt(model.ModalityVideo, nil)
	raw, err := llm.Vision(ctx, "vision", prompt, framePath, preprocessSystemPrompt)
	if err != nil {
		return upstreamPreprocess(err)
	}
	text, caption := parseVisionResponse(raw)
	s.Segments = []Segment{{Text: text, Caption: caption}}
	return nil
}
