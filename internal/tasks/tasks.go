package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg" // For encoding JPEG
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/email"
	"github.com/pratik860s/Autopart-Backend/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery  = "email:deliver"
	TypeImageProcess   = "image:process"
	TypePhantomCleanup = "user:phantom:cleanup"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed from rdb.Options()
	}
	return asynq.NewClient(clientOpt)
}

// Notifier enqueues email delivery tasks. It implements services.Notifier so
// any service can fire notifications without knowing about the queue.
type Notifier struct {
	client *asynq.Client
	locale string
}

// NewNotifier wraps an asynq client as a services.Notifier.
func NewNotifier(client *asynq.Client, defaultLocale string) *Notifier {
	if defaultLocale == "" {
		defaultLocale = "en-GB"
	}
	return &Notifier{client: client, locale: defaultLocale}
}

func (n *Notifier) SendTemplate(ctx context.Context, to, templateID string, data map[string]interface{}) error {
	payload, err := json.Marshal(EmailTaskPayload{
		To:         to,
		TemplateID: templateID,
		Locale:     n.locale,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}
	task := asynq.NewTask(TypeEmailDelivery, payload)
	_, err = n.client.EnqueueContext(ctx, task, asynq.Queue("critical"), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("failed to enqueue email task: %w", err)
	}
	return nil
}

// EnqueueImageProcess queues normalization of an uploaded image.
func EnqueueImageProcess(ctx context.Context, client *asynq.Client, s3Key string) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key})
	if err != nil {
		return fmt.Errorf("failed to marshal image payload: %w", err)
	}
	task := asynq.NewTask(TypeImageProcess, payload)
	_, err = client.EnqueueContext(ctx, task, asynq.Queue("images"))
	if err != nil {
		return fmt.Errorf("failed to enqueue image task: %w", err)
	}
	return nil
}

// EnqueuePhantomCleanup schedules one cleanup sweep.
func EnqueuePhantomCleanup(ctx context.Context, client *asynq.Client) error {
	task := asynq.NewTask(TypePhantomCleanup, nil)
	_, err := client.EnqueueContext(ctx, task, asynq.Queue("low"))
	if err != nil {
		return fmt.Errorf("failed to enqueue phantom cleanup task: %w", err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	userService          services.IUserService
	emailTemplateService services.IEmailTemplateService
	s3Client             *s3.Client
	taskClient           *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	userService services.IUserService,
	emailTemplateService services.IEmailTemplateService,
	s3Client *s3.Client,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		userService:          userService,
		emailTemplateService: emailTemplateService,
		s3Client:             s3Client,
		taskClient:           taskClient,
	}
}

// SetupServer configures an Asynq server and its handler mux. The caller is
// responsible for running it; returns nil, nil when no worker role is set.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
		// Add Password, DB if needed
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			// Specify different queues for different task types based on worker mode
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5, // Separate queue for images
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	// Register handlers based on worker type
	mux := asynq.NewServeMux()

	if isBgWorker { // Register handlers for the main background worker
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypePhantomCleanup, processor.HandlePhantomCleanupTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker { // Register handlers for the image processing worker
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		// API mode doesn't run a task server, but can still enqueue tasks
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// EmailTaskPayload carries one templated email to deliver.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"` // Optional locale
	Data       map[string]interface{} `json:"data"`
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Sending email task: To=%s, Template=%s", payload.To, payload.TemplateID)

	// Determine locale (use default if not provided)
	locale := payload.Locale
	if locale == "" {
		locale = "en-GB"
	}

	// Get Email Template from DB
	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		// Non-retryable if template not found
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	// Simple placeholder replacement (replace {{.key}})
	// TODO: Use a proper templating engine (text/template, html/template) for safety and flexibility
	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val) // Basic string conversion
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	// Construct the raw email message including headers
	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	// Basic email structure with essential headers.
	// Note: Proper MIME encoding for HTML or attachments would be more complex.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n") // End of headers
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	rawMessage := []byte(sb.String())

	err = p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, rawMessage)
	if err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// ImageTaskPayload identifies one uploaded image to normalize in place. The
// owning document already references the key, so no DB write is needed here.
type ImageTaskPayload struct {
	S3Key string `json:"s3_key"`
}

func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s", payload.S3Key)

	// 1. Download image from S3
	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		log.Printf("Error reading image object body for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("failed to read image data: %w", err)
	}

	// Check initial size before decoding (more efficient)
	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	// 2. Check dimensions
	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight
	if !needsResize {
		log.Printf("Image %s within limits, no processing needed.", payload.S3Key)
		return nil
	}

	// 3. Resize and re-encode as JPEG
	log.Printf("Resizing image %s (original: %dx%d, max: %dx%d)", payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
	resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("Error encoding resized image %s: %v", payload.S3Key, err)
		return fmt.Errorf("failed to re-encode resized image: %w", err)
	}
	if int64(buf.Len()) > maxSizeBytes {
		log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, buf.Len(), maxSizeBytes)
		return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
	}

	// 4. Upload processed image (overwrite original)
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(payload.S3Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		log.Printf("Error uploading processed image %s to S3: %v", payload.S3Key, err)
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	log.Printf("Image task processed successfully: Key=%s, resized to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())
	return nil
}

// HandlePhantomCleanupTask soft-deletes auto-created buyer accounts that were
// never claimed within the configured age.
func (p *TaskProcessor) HandlePhantomCleanupTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting phantom user cleanup task...")

	phantomUserIDs, err := p.userService.GetAllPhantomUserIDs(ctx)
	if err != nil {
		log.Printf("Error getting phantom user IDs: %v", err)
		return err // Retry DB error
	}

	if len(phantomUserIDs) == 0 {
		log.Println("No phantom users found to check.")
		return nil
	}

	maxAge := p.cfg.MaxPhantomAge
	deletedCount := 0
	log.Printf("Found %d phantom users. Max age %s.", len(phantomUserIDs), maxAge)

	for _, userID := range phantomUserIDs {
		if err := p.userService.DeletePhantomUser(ctx, userID, maxAge); err != nil {
			log.Printf("Error cleaning up phantom user %s: %v", userID.String(), err)
			continue
		}
		deletedCount++
	}

	log.Printf("Phantom user cleanup finished. Processed %d users.", deletedCount)
	return nil
}
