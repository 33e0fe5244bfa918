package store

// QueueOutbox adds a quick-reply send to the outbox.
func (s *Store) QueueOutbox(clientMsgID, chatID, body string) error {
	if err := s.guard(); err != nil {
		return err
	}
	now := s.now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO outbox (client_msg_id, chat_id, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, chatID, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (s *Store) MarkOutboxSending(clientMsgID string) error {
	_, err := s.db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_msg_id = ?`,
		s.now().UnixMilli(), clientMsgID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message id.
func (s *Store) MarkOutboxSent(clientMsgID, serverMsgID string) error {
	_, err := s.db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ?, updated_at = ? WHERE client_msg_id = ?`,
		serverMsgID, s.now().UnixMilli(), clientMsgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (s *Store) MarkOutboxFailed(clientMsgID, errMsg string) error {
	_, err := s.db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`,
		errMsg, s.now().UnixMilli(), clientMsgID)
	return err
}

// PendingOutbox returns queued sends in enqueue order.
func (s *Store) PendingOutbox() ([]OutboxEntry, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT id, client_msg_id, chat_id, body, status, error_message, server_msg_id
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ChatID, &e.Body, &e.Status, &e.ErrorMessage, &e.ServerMsgID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
