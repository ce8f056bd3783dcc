// Package generation runs generator and image editor nodes and writes
// their results back into the canvas as output nodes.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/aggregation"
	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Progress milestones of an image generation
const (
	progressAggregated = 10
	progressAnalyzed   = 60
	progressGenerating = 70
	progressDone       = 100
)

// Orchestrator drives the generation state machine of generator nodes
type Orchestrator struct {
	aggregator *aggregation.Aggregator
	analysis   *analysis.Service
	text       ports.TextGenerator
	images     ports.ImageGenerator
	resolver   *media.Resolver
	bus        ports.EventBus
	clock      utils.Clock
	config     *config.DomainConfig
	metrics    ports.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// Deps groups the collaborators of an Orchestrator
type Deps struct {
	Aggregator *aggregation.Aggregator
	Analysis   *analysis.Service
	Text       ports.TextGenerator
	Images     ports.ImageGenerator
	Resolver   *media.Resolver
	Bus        ports.EventBus
	Clock      utils.Clock
	Config     *config.DomainConfig
	Metrics    ports.Metrics
	Logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{
		aggregator: deps.Aggregator,
		analysis:   deps.Analysis,
		text:       deps.Text,
		images:     deps.Images,
		resolver:   deps.Resolver,
		bus:        deps.Bus,
		clock:      deps.Clock,
		config:     deps.Config,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     otel.Tracer("canvas-backend.application.generation"),
	}
	if o.config == nil {
		o.config = config.DefaultDomainConfig()
	}
	if o.clock == nil {
		o.clock = utils.RealClock()
	}
	if o.metrics == nil {
		o.metrics = ports.NopMetrics{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.resolver == nil {
		o.resolver = media.NewResolver(nil)
	}
	if o.aggregator == nil {
		o.aggregator = aggregation.NewAggregator(o.resolver, o.logger)
	}
	return o
}

// Generate aggregates the inputs of a generator node and produces its outputs.
// Progress is written to the node as the run advances; the returned outcome
// tells how the run ended.
func (o *Orchestrator) Generate(ctx context.Context, canvas *aggregates.Canvas, generatorID string) Outcome {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Generate",
		trace.WithAttributes(
			attribute.String("canvas.id", canvas.ID()),
			attribute.String("generator.id", generatorID),
		),
	)
	defer span.End()

	outcome := o.generate(ctx, canvas, generatorID)
	span.SetAttributes(
		attribute.String("outcome", string(outcome.Kind)),
		attribute.Int("outputs", len(outcome.OutputIDs)),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
	}
	return outcome
}

func (o *Orchestrator) generate(ctx context.Context, canvas *aggregates.Canvas, generatorID string) Outcome {
	node, ok := canvas.Node(generatorID)
	if !ok {
		return failed(pkgerrors.NewNotFoundError("generator"))
	}
	gen, ok := node.Data.(*entities.GeneratorData)
	if !ok {
		return failed(pkgerrors.NewValidationError(fmt.Sprintf("%s nodes cannot generate", node.Kind)).
			WithCode(pkgerrors.CodeUnsupportedNode))
	}
	if gen.IsGenerating {
		return failed(pkgerrors.NewConflictError("generation already in progress"))
	}

	if len(canvas.IncomingEdges(generatorID)) == 0 {
		return o.reject(ctx, canvas, generatorID, gen.Format, OutcomeConnectionsRequired, connectionsRequired())
	}

	o.setState(canvas, generatorID, entities.Patch{
		"isGenerating":   true,
		"progress":       0,
		"currentStep":    entities.StepAggregating,
		"generatedCount": 0,
		"lastError":      "",
	})

	inputs := o.aggregator.Aggregate(ctx, canvas, generatorID)

	if gen.Format.IsImage() {
		if !inputs.HasContent() && len(inputs.Images) == 0 {
			return o.reject(ctx, canvas, generatorID, gen.Format, OutcomeContentRequired, contentRequired())
		}
		return o.generateImage(ctx, canvas, node, gen, inputs)
	}
	if !inputs.HasContent() {
		return o.reject(ctx, canvas, generatorID, gen.Format, OutcomeContentRequired, contentRequired())
	}
	return o.generateText(ctx, canvas, node, gen, inputs)
}

// generateText streams one variation per iteration. An empty variation
// creates no output but still counts as completed. A quota error stops the
// loop immediately.
func (o *Orchestrator) generateText(ctx context.Context, canvas *aggregates.Canvas, node entities.Node, gen *entities.GeneratorData, inputs aggregation.Context) Outcome {
	total := gen.EffectiveQuantity(o.config.MaxQuantity)
	outcome := Outcome{Requested: total}

	o.setState(canvas, node.ID, entities.Patch{"currentStep": entities.StepGenerating})

	for i := 0; i < total; i++ {
		req := ports.TextRequest{
			Context:  inputs.Text(),
			Briefing: inputs.Briefing,
			Format:   gen.Format,
			Platform: gen.Platform,
		}
		if total > 1 {
			req.Variation = i + 1
			req.Total = total
			req.Briefing = joinNonEmpty("\n\n", inputs.Briefing, variationInstruction(i+1, total))
		}

		live := &liveOutput{
			orch:       o,
			canvas:     canvas,
			producerID: node.ID,
			pos:        node.Position.Translate(o.config.OutputOffsetX, float64(i)*o.config.OutputOffsetY),
			template: entities.OutputData{
				Format:    gen.Format,
				Platform:  gen.Platform,
				Variation: i + 1,
			},
			expected: o.config.ExpectedStreamLength,
		}
		content, err := o.streamVariation(ctx, req, func(text string) { live.update(ctx, text) })
		if err != nil {
			live.discard()
			kind := OutcomeFailed
			if pkgerrors.IsQuota(err) {
				kind = OutcomeQuotaExceeded
			}
			o.logger.Warn("Text generation stopped",
				zap.String("generator_id", node.ID),
				zap.Int("variation", i+1),
				zap.Int("total", total),
				zap.Error(err),
			)
			return o.abort(ctx, canvas, node.ID, gen.Format, kind, err, outcome)
		}

		outcome.Completed++
		outputID, err := live.finish(ctx, content)
		if err != nil {
			return o.abort(ctx, canvas, node.ID, gen.Format, OutcomeFailed, err, outcome)
		}
		if outputID == "" {
			o.logger.Info("Variation returned no content",
				zap.String("generator_id", node.ID),
				zap.Int("variation", i+1),
			)
		} else {
			outcome.OutputIDs = append(outcome.OutputIDs, outputID)
		}

		o.setState(canvas, node.ID, entities.Patch{
			"progress":       outcome.Completed * progressDone / total,
			"generatedCount": outcome.Completed,
		})
	}

	if len(outcome.OutputIDs) == 0 {
		err := pkgerrors.NewExternalError("generate-content", fmt.Errorf("all %d variations were empty", total))
		return o.abort(ctx, canvas, node.ID, gen.Format, OutcomeFailed, err, outcome)
	}
	return o.succeed(canvas, node.ID, gen.Format, outcome)
}

// streamVariation reads one streamed variation, handing the text received
// so far to onDelta as it grows
func (o *Orchestrator) streamVariation(ctx context.Context, req ports.TextRequest, onDelta func(string)) (string, error) {
	body, err := o.text.StreamText(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()
	text, err := ReadStream(ctx, body, onDelta)
	if err != nil {
		return "", pkgerrors.NewExternalError("generate-content", err)
	}
	return strings.TrimSpace(text), nil
}

// generateImage analyzes attached images lacking a style analysis, then
// requests a single image
func (o *Orchestrator) generateImage(ctx context.Context, canvas *aggregates.Canvas, node entities.Node, gen *entities.GeneratorData, inputs aggregation.Context) Outcome {
	outcome := Outcome{Requested: 1}
	o.setState(canvas, node.ID, entities.Patch{"progress": progressAggregated})

	if len(inputs.PendingAnalysis) > 0 && o.analysis != nil {
		o.setState(canvas, node.ID, entities.Patch{"currentStep": entities.StepAnalyzing})
		result := o.analysis.AnalyzeBatch(ctx, canvas, inputs.PendingAnalysis, entities.AnalysisStyle, func(done, total int) {
			span := progressAnalyzed - progressAggregated
			o.setState(canvas, node.ID, entities.Patch{"progress": progressAggregated + done*span/total})
		})
		if result.QuotaExceeded {
			return o.abort(ctx, canvas, node.ID, gen.Format, OutcomeQuotaExceeded,
				pkgerrors.NewQuotaError("analyze-image-style"), outcome)
		}
		if result.Failed > 0 {
			o.logger.Warn("Some reference images could not be analyzed",
				zap.String("generator_id", node.ID),
				zap.Int("failed", result.Failed),
				zap.Int("total", result.Total),
			)
		}
		inputs = o.aggregator.Aggregate(ctx, canvas, node.ID)
	}

	o.setState(canvas, node.ID, entities.Patch{
		"currentStep": entities.StepGenerating,
		"progress":    progressGenerating,
	})

	imageType := LookupImageType(gen.ImageType)
	aspect := gen.AspectRatio
	if aspect == "" {
		aspect = imageType.AspectRatio
	}
	refs := inputs.ImageURLs()
	if limit := o.config.MaxImageReferences; limit >= 0 && len(refs) > limit {
		refs = refs[:limit]
	}

	url, err := o.images.GenerateImage(ctx, ports.ImageRequest{
		Prompt:          joinNonEmpty("\n\n", inputs.Briefing, inputs.Text()),
		AspectRatio:     aspect,
		Style:           gen.Style,
		StyleContext:    inputs.StyleText(),
		Instructions:    imageType.Instructions,
		ImageType:       imageType.Name,
		Platform:        gen.Platform,
		References:      refs,
		NoText:          gen.NoText,
		PreserveSubject: gen.PreserveSubject,
	})
	if err == nil && url == "" {
		err = pkgerrors.NewExternalError("generate-image", fmt.Errorf("no image returned"))
	}
	if err != nil {
		kind := OutcomeFailed
		if pkgerrors.IsQuota(err) {
			kind = OutcomeQuotaExceeded
		}
		return o.abort(ctx, canvas, node.ID, gen.Format, kind, err, outcome)
	}

	pos := node.Position.Translate(o.config.OutputOffsetX, 0)
	outputID, err := o.createOutput(ctx, canvas, node.ID, pos, &entities.OutputData{
		ImageURL: url,
		IsImage:  true,
		Format:   gen.Format,
		Platform: gen.Platform,
	})
	if err != nil {
		return o.abort(ctx, canvas, node.ID, gen.Format, OutcomeFailed, err, outcome)
	}
	outcome.Completed = 1
	outcome.OutputIDs = []string{outputID}
	o.setState(canvas, node.ID, entities.Patch{"generatedCount": 1})
	return o.succeed(canvas, node.ID, gen.Format, outcome)
}

// Regenerate deletes an output and runs its upstream generator again
func (o *Orchestrator) Regenerate(ctx context.Context, canvas *aggregates.Canvas, outputID string) Outcome {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Regenerate",
		trace.WithAttributes(attribute.String("output.id", outputID)),
	)
	defer span.End()

	node, ok := canvas.Node(outputID)
	if !ok || node.Kind != entities.KindOutput {
		return failed(pkgerrors.NewNotFoundError("output"))
	}

	var upstream entities.Node
	for _, edge := range canvas.IncomingEdges(outputID) {
		if n, ok := canvas.Node(edge.Source); ok && (n.Kind == entities.KindGenerator || n.Kind == entities.KindImageEditor) {
			upstream = n
			break
		}
	}
	if upstream.ID == "" {
		return failed(pkgerrors.NewNotFoundError("upstream generator"))
	}
	span.SetAttributes(attribute.String("generator.id", upstream.ID))

	if err := o.checkRunnable(ctx, canvas, upstream); err != nil {
		outcome := rejected(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return outcome
	}

	canvas.DeleteNode(outputID)
	if upstream.Kind == entities.KindImageEditor {
		return o.EditImage(ctx, canvas, upstream.ID)
	}
	return o.Generate(ctx, canvas, upstream.ID)
}

// checkRunnable validates a generator or image editor without changing the canvas
func (o *Orchestrator) checkRunnable(ctx context.Context, canvas *aggregates.Canvas, producer entities.Node) error {
	switch data := producer.Data.(type) {
	case *entities.GeneratorData:
		if data.IsGenerating {
			return pkgerrors.NewConflictError("generation already in progress")
		}
		if len(canvas.IncomingEdges(producer.ID)) == 0 {
			return connectionsRequired()
		}
		inputs := o.aggregator.Aggregate(ctx, canvas, producer.ID)
		if inputs.HasContent() || (data.Format.IsImage() && len(inputs.Images) > 0) {
			return nil
		}
		return contentRequired()
	case *entities.ImageEditorData:
		if data.IsProcessing {
			return pkgerrors.NewConflictError("image edit already in progress")
		}
		_, _, err := editInputs(canvas, producer.ID, data)
		return err
	}
	return pkgerrors.NewValidationError(fmt.Sprintf("%s nodes cannot generate", producer.Kind)).
		WithCode(pkgerrors.CodeUnsupportedNode)
}

// EditImage applies the instruction of an image editor node to its base image.
// The base image comes from the node itself or from its single upstream node.
func (o *Orchestrator) EditImage(ctx context.Context, canvas *aggregates.Canvas, editorID string) Outcome {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.EditImage",
		trace.WithAttributes(attribute.String("editor.id", editorID)),
	)
	defer span.End()

	node, ok := canvas.Node(editorID)
	if !ok {
		return failed(pkgerrors.NewNotFoundError("image editor"))
	}
	editor, ok := node.Data.(*entities.ImageEditorData)
	if !ok {
		return failed(pkgerrors.NewValidationError(fmt.Sprintf("%s nodes cannot edit images", node.Kind)).
			WithCode(pkgerrors.CodeUnsupportedNode))
	}
	if editor.IsProcessing {
		return failed(pkgerrors.NewConflictError("image edit already in progress"))
	}

	base, instruction, err := editInputs(canvas, editorID, editor)
	if err != nil {
		return Outcome{Kind: OutcomeContentRequired, Err: err}.withMessage()
	}

	o.setState(canvas, editorID, entities.Patch{"isProcessing": true, "lastError": ""})
	outcome := Outcome{Requested: 1}

	fetchable, err := o.resolver.Fetchable(base)
	if err == nil {
		var url string
		url, err = o.images.EditImage(ctx, ports.EditRequest{
			BaseImage:   fetchable,
			Instruction: instruction,
			AspectRatio: editor.AspectRatio,
		})
		if err == nil && url == "" {
			err = pkgerrors.NewExternalError("edit-image", fmt.Errorf("no image returned"))
		}
		if err == nil {
			pos := node.Position.Translate(o.config.OutputOffsetX, 0)
			var outputID string
			outputID, err = o.createOutput(ctx, canvas, editorID, pos, &entities.OutputData{
				ImageURL: url,
				IsImage:  true,
				Format:   valueobjects.FormatImage,
			})
			if err == nil {
				o.setState(canvas, editorID, entities.Patch{"isProcessing": false})
				outcome.Kind = OutcomeSucceeded
				outcome.Completed = 1
				outcome.OutputIDs = []string{outputID}
				o.metrics.RecordGeneration(string(valueobjects.FormatImage), string(OutcomeSucceeded))
				o.metrics.RecordOutputs(string(valueobjects.FormatImage), 1)
				return outcome
			}
		}
	}

	outcome.Kind = OutcomeFailed
	if pkgerrors.IsQuota(err) {
		outcome.Kind = OutcomeQuotaExceeded
	}
	outcome.Err = err
	o.setState(canvas, editorID, entities.Patch{"isProcessing": false, "lastError": err.Error()})
	o.metrics.RecordGeneration(string(valueobjects.FormatImage), string(outcome.Kind))
	o.publish(ctx, events.NewGenerationFailed(canvas.ID(), editorID, string(outcome.Kind), err.Error(), 0, o.clock.Now()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return outcome.withMessage()
}

// createOutput adds an output node wired from its producer. Results for a
// producer deleted in the meantime are dropped.
func (o *Orchestrator) createOutput(ctx context.Context, canvas *aggregates.Canvas, producerID string, pos valueobjects.Position, data *entities.OutputData) (string, error) {
	if _, ok := canvas.Node(producerID); !ok {
		return "", pkgerrors.NewNotFoundError("generator")
	}
	now := o.clock.Now()
	data.ApprovalStatus = valueobjects.ApprovalDraft
	data.GeneratedAt = &now

	outputID, err := canvas.AddNodeData(pos, data)
	if err != nil {
		return "", err
	}
	if _, err := canvas.Connect(entities.Edge{Source: producerID, Target: outputID}); err != nil {
		canvas.DeleteNode(outputID)
		return "", err
	}
	o.publish(ctx, events.NewOutputCreated(canvas.ID(), producerID, outputID,
		string(data.Format), string(data.Platform), data.Variation, now))
	return outputID, nil
}

func (o *Orchestrator) succeed(canvas *aggregates.Canvas, generatorID string, format valueobjects.ContentFormat, outcome Outcome) Outcome {
	outcome.Kind = OutcomeSucceeded
	o.setState(canvas, generatorID, entities.Patch{
		"isGenerating": false,
		"progress":     progressDone,
		"currentStep":  entities.StepDone,
	})
	o.metrics.RecordGeneration(string(format), string(OutcomeSucceeded))
	o.metrics.RecordOutputs(string(format), len(outcome.OutputIDs))
	o.logger.Info("Generation completed",
		zap.String("generator_id", generatorID),
		zap.Int("outputs", len(outcome.OutputIDs)),
		zap.Int("completed", outcome.Completed),
	)
	return outcome
}

// reject reports a validation outcome. In-flight flags are cleared and
// nothing else changes.
func (o *Orchestrator) reject(ctx context.Context, canvas *aggregates.Canvas, generatorID string, format valueobjects.ContentFormat, kind OutcomeKind, err error) Outcome {
	o.setState(canvas, generatorID, entities.Patch{
		"isGenerating": false,
		"currentStep":  entities.StepIdle,
		"progress":     0,
	})
	o.metrics.RecordGeneration(string(format), string(kind))
	o.publish(ctx, events.NewGenerationFailed(canvas.ID(), generatorID, string(kind), err.Error(), 0, o.clock.Now()))
	return Outcome{Kind: kind, Err: err}.withMessage()
}

// abort ends a run that failed after it started. Outputs created so far remain.
func (o *Orchestrator) abort(ctx context.Context, canvas *aggregates.Canvas, generatorID string, format valueobjects.ContentFormat, kind OutcomeKind, err error, outcome Outcome) Outcome {
	outcome.Kind = kind
	outcome.Err = err
	o.setState(canvas, generatorID, entities.Patch{
		"isGenerating":   false,
		"currentStep":    entities.StepError,
		"lastError":      err.Error(),
		"generatedCount": outcome.Completed,
	})
	o.metrics.RecordGeneration(string(format), string(kind))
	if len(outcome.OutputIDs) > 0 {
		o.metrics.RecordOutputs(string(format), len(outcome.OutputIDs))
	}
	o.publish(ctx, events.NewGenerationFailed(canvas.ID(), generatorID, string(kind), err.Error(), outcome.Completed, o.clock.Now()))
	o.logger.Error("Generation failed",
		zap.String("generator_id", generatorID),
		zap.String("outcome", string(kind)),
		zap.Int("completed", outcome.Completed),
		zap.Error(err),
	)
	return outcome.withMessage()
}

func (o *Orchestrator) setState(canvas *aggregates.Canvas, nodeID string, patch entities.Patch) {
	if err := canvas.UpdateNode(nodeID, patch); err != nil {
		o.logger.Warn("Failed to update node state", zap.String("node_id", nodeID), zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, evts ...events.DomainEvent) {
	if o.bus == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.bus.Publish(pubCtx, evts...); err != nil {
		o.logger.Warn("Failed to publish generation event", zap.Error(err))
	}
}

// upstreamImage walks the first incoming edge to a node carrying an image
// editInputs resolves the base image and instruction of an image editor
func editInputs(canvas *aggregates.Canvas, editorID string, editor *entities.ImageEditorData) (string, string, error) {
	base := editor.BaseImage
	if base == "" {
		base = upstreamImage(canvas, editorID)
	}
	if base == "" {
		return "", "", pkgerrors.NewValidationError("connect or select a base image").WithCode(pkgerrors.CodeBaseImageRequired)
	}
	instruction := strings.TrimSpace(editor.Instruction)
	if instruction == "" {
		return "", "", pkgerrors.NewValidationError("describe the edit to apply").WithCode(pkgerrors.CodeInstructionRequired)
	}
	return base, instruction, nil
}

func upstreamImage(canvas *aggregates.Canvas, nodeID string) string {
	for _, edge := range canvas.IncomingEdges(nodeID) {
		node, ok := canvas.Node(edge.Source)
		if !ok {
			continue
		}
		switch d := node.Data.(type) {
		case *entities.OutputData:
			if d.IsImage {
				return d.ImageURL
			}
		case *entities.ImageSourceData:
			if len(d.Images) > 0 {
				return d.Images[0].URL
			}
		case *entities.SourceData:
			for _, f := range d.Files {
				if f.IsImage() {
					return f.URL
				}
			}
			if len(d.ExtractedImages) > 0 {
				return d.ExtractedImages[0]
			}
			return d.Thumbnail
		case *entities.AttachmentData:
			if len(d.Images) > 0 {
				return d.Images[0].URL
			}
		}
		return ""
	}
	return ""
}

func variationInstruction(i, total int) string {
	return fmt.Sprintf("This is variation %d of %d. Make it clearly distinct from the other variations.", i, total)
}

func connectionsRequired() error {
	return pkgerrors.NewValidationError("connect at least one input to the generator").
		WithCode(pkgerrors.CodeConnectionsRequired)
}

// rejected maps a validation error to the outcome the run would have ended with
func rejected(err error) Outcome {
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeConnectionsRequired):
		return Outcome{Kind: OutcomeConnectionsRequired, Err: err}.withMessage()
	case pkgerrors.HasCode(err, pkgerrors.CodeContentRequired),
		pkgerrors.HasCode(err, pkgerrors.CodeBaseImageRequired),
		pkgerrors.HasCode(err, pkgerrors.CodeInstructionRequired):
		return Outcome{Kind: OutcomeContentRequired, Err: err}.withMessage()
	}
	return failed(err)
}

func contentRequired() error {
	return pkgerrors.NewValidationError("connected inputs carry no text or briefing").
		WithCode(pkgerrors.CodeContentRequired)
}

func failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}.withMessage()
}

func (o Outcome) withMessage() Outcome {
	if o.Err == nil {
		return o
	}
	if appErr := pkgerrors.GetAppError(o.Err); appErr != nil {
		o.Message = appErr.Message
	} else {
		o.Message = o.Err.Error()
	}
	return o
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
