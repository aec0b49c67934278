package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

type AppointmentEvent struct {
	PatientID    string
	ProviderName string
	StartsAt     time.Time
	Href         string
}

// CreateAppointmentBooked is the appointment-event producer entry point for a
// freshly scheduled visit.
func (s *Service) CreateAppointmentBooked(ctx context.Context, ev AppointmentEvent) (Notification, error) {
	return s.Create(ctx, CreateInput{
		RecipientID: ev.PatientID,
		ActorName:   ev.ProviderName,
		Type:        TypeAppointmentBooked,
		Title:       "Appointment booked",
		Body:        fmt.Sprintf("Your appointment with %s is %s.", ev.ProviderName, humanize.Time(ev.StartsAt)),
		Href:        ev.Href,
		Metadata:    map[string]any{"startsAt": ev.StartsAt},
	})
}

func (s *Service) CreateAppointmentRescheduled(ctx context.Context, ev AppointmentEvent) (Notification, error) {
	return s.Create(ctx, CreateInput{
		RecipientID: ev.PatientID,
		ActorName:   ev.ProviderName,
		Type:        TypeAppointmentRescheduled,
		Title:       "Appointment rescheduled",
		Body:        fmt.Sprintf("%s moved your appointment to %s.", ev.ProviderName, humanize.Time(ev.StartsAt)),
		Href:        ev.Href,
		Metadata:    map[string]any{"startsAt": ev.StartsAt},
	})
}

func (s *Service) CreateAppointmentCancelled(ctx context.Context, ev AppointmentEvent) (Notification, error) {
	return s.Create(ctx, CreateInput{
		RecipientID: ev.PatientID,
		ActorName:   ev.ProviderName,
		Type:        TypeAppointmentCancelled,
		Title:       "Appointment cancelled",
		Body:        fmt.Sprintf("Your appointment with %s was cancelled.", ev.ProviderName),
		Href:        ev.Href,
		Metadata:    map[string]any{"startsAt": ev.StartsAt},
	})
}
