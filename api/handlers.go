package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	logx "github.com/mminh007/machine-translation/pkg/logger"
	speechx "github.com/mminh007/machine-translation/pkg/speech"
)

const agentKeyParam = "agent_key"

var errBadRequest = errors.New("invalid request body")

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := io.Reader(r.Body)
	if s.conf.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.conf.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// checkModel rejects models outside the catalog before any run starts.
func (s *Server) checkModel(name string) error {
	if name == "" || s.deps.Models == nil {
		return nil
	}
	if !slices.Contains(s.deps.Models.Models(), name) {
		return fmt.Errorf("%w: %s", errUnknownModel, name)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Machine translation agent service"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := contractx.ServiceInfo{
		Agents:       s.deps.Agents.List(),
		DefaultAgent: s.deps.Agents.Default(),
		DefaultModel: s.deps.Service.DefaultModel(),
		Models:       []string{},
	}
	if s.deps.Models != nil {
		info.Models = s.deps.Models.Models()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	agentKey := r.URL.Query().Get(agentKeyParam)

	var in contractx.UserInput
	if err := s.decode(w, r, &in); err != nil {
		writeError(w, r, err, agentKey)
		return
	}
	if err := s.checkModel(in.Model); err != nil {
		writeError(w, r, err, agentKey)
		return
	}

	reply, err := s.deps.Service.Invoke(r.Context(), agentKey, in)
	if err != nil {
		writeError(w, r, err, agentKey)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	agentKey := r.URL.Query().Get(agentKeyParam)

	var in contractx.StreamInput
	if err := s.decode(w, r, &in); err != nil {
		writeError(w, r, err, agentKey)
		return
	}
	if err := s.checkModel(in.Model); err != nil {
		writeError(w, r, err, agentKey)
		return
	}

	sink := newSSESink(w)
	if err := s.deps.Service.Stream(r.Context(), agentKey, in, sink); err != nil {
		if sink.started {
			logx.FromContext(r.Context()).Warn().Err(err).Msg("stream aborted")
			return
		}
		writeError(w, r, err, agentKey)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var in contractx.ChatHistoryInput
	if err := s.decode(w, r, &in); err != nil {
		writeError(w, r, err, "")
		return
	}

	history, err := s.deps.Service.History(r.Context(), in.ThreadID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type transcription struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if s.deps.Speech == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Speech recognition is not configured.")
		return
	}
	if s.conf.MaxAudioBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.conf.MaxAudioBytes)
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "audio_file is required.")
		return
	}
	defer file.Close()

	text, err := s.deps.Speech.Transcribe(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, speechx.ErrEmptyAudio):
		writeDetail(w, http.StatusUnprocessableEntity, "audio_file is empty.")
		return
	case err != nil:
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, transcription{Text: text})
}
