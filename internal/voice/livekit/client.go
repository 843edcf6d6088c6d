// Package livekit implements the call capabilities on LiveKit: SIP dialing,
// egress recording, room teardown and agent dispatch through the server SDK,
// plus the signed webhook receiver.
package livekit

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	lkproto "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/career-coach/internal/calls"
	"github.com/wolfman30/career-coach/internal/errs"
)

var tracer = otel.Tracer("career-coach.voice.livekit")

const (
	// Dial blocks until the callee answers, so the bound covers ringing.
	dialTimeout     = 2 * time.Minute
	recordingLayout = "speaker"
)

// Config holds LiveKit project credentials.
type Config struct {
	URL        string
	APIKey     string
	APISecret  string
	SIPTrunkID string
	AgentName  string
}

type sipService interface {
	CreateSIPParticipant(ctx context.Context, in *lkproto.CreateSIPParticipantRequest) (*lkproto.SIPParticipantInfo, error)
}

type egressService interface {
	StartRoomCompositeEgress(ctx context.Context, in *lkproto.RoomCompositeEgressRequest) (*lkproto.EgressInfo, error)
	StopEgress(ctx context.Context, in *lkproto.StopEgressRequest) (*lkproto.EgressInfo, error)
}

type roomService interface {
	DeleteRoom(ctx context.Context, in *lkproto.DeleteRoomRequest) (*lkproto.DeleteRoomResponse, error)
}

type dispatchService interface {
	CreateDispatch(ctx context.Context, in *lkproto.CreateAgentDispatchRequest) (*lkproto.AgentDispatch, error)
}

type services struct {
	sip      sipService
	egress   egressService
	rooms    roomService
	dispatch dispatchService
}

// Client talks to the LiveKit server APIs.
type Client struct {
	ready     bool
	trunkID   string
	agentName string
	services
}

var (
	_ calls.Dialer          = (*Client)(nil)
	_ calls.Recorder        = (*Client)(nil)
	_ calls.RoomReleaser    = (*Client)(nil)
	_ calls.AgentDispatcher = (*Client)(nil)
)

func NewClient(cfg Config) *Client {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return newClient(cfg, services{
		sip:      lksdk.NewSIPClient(url, cfg.APIKey, cfg.APISecret),
		egress:   lksdk.NewEgressClient(url, cfg.APIKey, cfg.APISecret),
		rooms:    lksdk.NewRoomServiceClient(url, cfg.APIKey, cfg.APISecret),
		dispatch: lksdk.NewAgentDispatchServiceClient(url, cfg.APIKey, cfg.APISecret),
	})
}

func newClient(cfg Config, svc services) *Client {
	return &Client{
		ready:     strings.TrimSpace(cfg.URL) != "" && cfg.APIKey != "" && cfg.APISecret != "",
		trunkID:   cfg.SIPTrunkID,
		agentName: cfg.AgentName,
		services:  svc,
	}
}

// Ready reports whether API credentials are configured.
func (c *Client) Ready() bool {
	return c != nil && c.ready
}

// Dial places an outbound SIP call into the room.
func (c *Client) Dial(ctx context.Context, req calls.DialRequest) error {
	if !c.Ready() {
		return errs.NotInitialized("livekit client")
	}
	if c.trunkID == "" {
		return errs.NotInitialized("livekit sip trunk")
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	return c.traced(ctx, "CreateSIPParticipant", func(ctx context.Context) error {
		_, err := c.sip.CreateSIPParticipant(ctx, &lkproto.CreateSIPParticipantRequest{
			SipTrunkId:          c.trunkID,
			SipCallTo:           req.Number,
			RoomName:            req.Room,
			ParticipantIdentity: req.ParticipantIdentity,
			ParticipantName:     req.ParticipantName,
			WaitUntilAnswered:   req.WaitUntilAnswered,
			KrispEnabled:        req.NoiseSuppression,
		})
		return err
	})
}

// StartRecording starts a room composite egress to req.Filepath and returns
// the egress id.
func (c *Client) StartRecording(ctx context.Context, req calls.RecordingRequest) (string, error) {
	if !c.Ready() {
		return "", errs.NotInitialized("livekit client")
	}
	var id string
	err := c.traced(ctx, "StartRoomCompositeEgress", func(ctx context.Context) error {
		info, err := c.egress.StartRoomCompositeEgress(ctx, &lkproto.RoomCompositeEgressRequest{
			RoomName:  req.Room,
			Layout:    recordingLayout,
			AudioOnly: req.AudioOnly,
			FileOutputs: []*lkproto.EncodedFileOutput{{
				FileType: fileType(req.Filepath),
				Filepath: req.Filepath,
			}},
		})
		if err != nil {
			return err
		}
		id = info.GetEgressId()
		return nil
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errs.Downstream("livekit: start egress", errors.New("empty egress id"))
	}
	return id, nil
}

// StopRecording stops an egress.
func (c *Client) StopRecording(ctx context.Context, recordingID string) error {
	if !c.Ready() {
		return errs.NotInitialized("livekit client")
	}
	return c.traced(ctx, "StopEgress", func(ctx context.Context) error {
		_, err := c.egress.StopEgress(ctx, &lkproto.StopEgressRequest{EgressId: recordingID})
		return err
	})
}

// ReleaseRoom deletes the room, disconnecting every participant. A room that
// is already gone is not an error.
func (c *Client) ReleaseRoom(ctx context.Context, room string) error {
	if !c.Ready() {
		return errs.NotInitialized("livekit client")
	}
	return c.traced(ctx, "DeleteRoom", func(ctx context.Context) error {
		_, err := c.rooms.DeleteRoom(ctx, &lkproto.DeleteRoomRequest{Room: room})
		var twirpErr twirp.Error
		if errors.As(err, &twirpErr) && twirpErr.Code() == twirp.NotFound {
			return nil
		}
		return err
	})
}

// DispatchAgent asks LiveKit to place the coaching agent in room.
func (c *Client) DispatchAgent(ctx context.Context, room, metadata string) (string, error) {
	if !c.Ready() {
		return "", errs.NotInitialized("livekit client")
	}
	if c.agentName == "" {
		return "", errs.NotInitialized("livekit agent name")
	}
	var id string
	err := c.traced(ctx, "CreateDispatch", func(ctx context.Context) error {
		out, err := c.dispatch.CreateDispatch(ctx, &lkproto.CreateAgentDispatchRequest{
			AgentName: c.agentName,
			Room:      room,
			Metadata:  metadata,
		})
		if err != nil {
			return err
		}
		id = out.GetId()
		return nil
	})
	return id, err
}

// traced runs one API call in a span and wraps failures as downstream errors.
func (c *Client) traced(ctx context.Context, method string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "livekit."+method)
	defer span.End()
	span.SetAttributes(attribute.String("livekit.method", method))

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errs.Downstream("livekit: "+method, err)
	}
	return nil
}

func fileType(filepath string) lkproto.EncodedFileType {
	switch strings.ToLower(path.Ext(filepath)) {
	case ".ogg":
		return lkproto.EncodedFileType_OGG
	case ".mp4":
		return lkproto.EncodedFileType_MP4
	}
	return lkproto.EncodedFileType_DEFAULT_FILETYPE
}
