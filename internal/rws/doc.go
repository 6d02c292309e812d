// Package rws реализует клиент ABB Robot Web Services (RWS): HTTP-сессию
// с cookie, разбор JSON-конвертов `{_embedded: {_state: [...]}}`, создание
// подписок и WebSocket-канал событий.
//
// Клиент аутентифицируется один раз (GET /rw), после чего cookie сессии
// переиспользуется всеми REST-вызовами и при апгрейде WebSocket-канала.
// На 401 транспорт сам отвечает на Basic или Digest challenge.
//
// Высокоуровневые методы:
//
//   - ControllerInfo, SystemProperties;
//   - Signal, SetSignal, Signals (постранично: limit/start);
//   - ExecutionState, StartProgram, StopProgram, ResetProgram;
//   - TaskState, Tasks, Variable, SetVariable;
//   - Files.
//
// Подписка:
//
//   - CreateSubscription отправляет POST /subscription и возвращает URL
//     канала из заголовка Location;
//   - OpenEventChannel открывает WebSocket (sub-protocol robapi2_subscription);
//   - EventChannel.Receive возвращает один кадр и Outcome — тег исхода
//     (кадр, отмена, канал закрыт, временная ошибка).
//
// Пример:
//
//	c, err := rws.New(rws.Config{BaseURL: "http://127.0.0.1"})
//	if err != nil { log.Fatal(err) }
//	if err := c.Authenticate(ctx); err != nil { log.Fatal(err) }
//	defer c.Logout(context.Background())
//
//	sig, err := c.Signal(ctx, "DI1")
//	if err == nil {
//	    fmt.Println(sig.Name, sig.Value)
//	}
//
//	url, err := c.CreateSubscription(ctx, []rws.Resource{
//	    {Path: "/rw/iosystem/signals/DO1;state", Priority: rws.PriorityMedium},
//	})
package rws
