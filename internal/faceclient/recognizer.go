package faceclient

import (
	"context"
	"encoding/base64"
	"net/http"

	"trueface/internal/cloudinary"
)

// Uploader stores an image and returns a URL the face service can fetch.
type Uploader interface {
	UploadBytes(ctx context.Context, data []byte, filename, sub string) (*cloudinary.UploadResult, error)
}

// Recognizer backs attendance with the remote face service. Images are
// uploaded first when an Uploader is set, otherwise sent inline as data URLs.
type Recognizer struct {
	Client    *Client
	Uploader  Uploader
	Threshold float64
}

// NewRecognizer creates a Recognizer. uploader may be nil.
func NewRecognizer(client *Client, uploader Uploader) *Recognizer {
	return &Recognizer{Client: client, Uploader: uploader, Threshold: 0.45}
}

// Enroll uploads the face photo and enrolls it under the student id.
func (r *Recognizer) Enroll(ctx context.Context, studentID, name string, image []byte) error {
	url, err := r.imageURL(ctx, image, studentID+".jpg", "students")
	if err != nil {
		return err
	}
	_, err = r.Client.Enroll(ctx, studentID, url, name)
	return err
}

// CountPresent counts distinct enrolled students matched in a classroom photo.
func (r *Recognizer) CountPresent(ctx context.Context, image []byte, enrolled int) (int, error) {
	url, err := r.imageURL(ctx, image, "classroom.jpg", "classrooms")
	if err != nil {
		return 0, err
	}
	topK := enrolled
	if topK < 1 {
		topK = 1
	}
	res, err := r.Client.Search(ctx, url, topK, r.Threshold)
	if err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(res.Matches))
	for _, m := range res.Matches {
		present[m.UserID] = struct{}{}
	}
	return len(present), nil
}

func (r *Recognizer) imageURL(ctx context.Context, image []byte, filename, sub string) (string, error) {
	if r.Uploader != nil {
		res, err := r.Uploader.UploadBytes(ctx, image, filename, sub)
		if err != nil {
			return "", err
		}
		return res.SecureURL, nil
	}
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image), nil
}
