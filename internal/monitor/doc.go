// Package monitor управляет подпиской RWS: создаёт её, открывает канал
// событий и крутит цикл чтения в одной фоновой горутине.
//
// Состояния цикла: Idle → Running → Draining → Stopped.
//
//   - кадр передаётся декодеру, следующий Receive — только после его возврата;
//   - отмена контекста переводит цикл в Draining и завершает его;
//   - временная ошибка чтения — пауза RetryDelay и повтор;
//   - закрытие канала удалённой стороной — сразу Stopped, без повтора.
//
// Stop ждёт завершения цикла не дольше таймаута и ничего не убивает
// принудительно. Shutdown дополнительно закрывает канал, выполняет logout
// и закрывает транспорт.
package monitor
